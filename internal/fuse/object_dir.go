package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/gitdag/internal/dag"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap"
)

// ObjectDir represents a single object (objects/<cid>/).
// Contains: kind, raw, data (blobs only), links/
type ObjectDir struct {
	fs.Inode
	repo   *dag.Repository
	cid    gocid.Cid
	kind   gitobj.ObjectKind
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*ObjectDir)(nil))
var _ = (fs.NodeReaddirer)((*ObjectDir)(nil))
var _ = (fs.NodeGetattrer)((*ObjectDir)(nil))

func (d *ObjectDir) name() string {
	return dag.CIDToFilename(d.cid)
}

func (d *ObjectDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("objects", d.name())
	return fs.OK
}

func (d *ObjectDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	for _, f := range objectFiles(d.kind) {
		entries = append(entries, fuse.DirEntry{
			Name: f,
			Mode: syscall.S_IFREG,
			Ino:  stableIno("objects", d.name(), f),
		})
	}
	entries = append(entries, fuse.DirEntry{
		Name: "links",
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("objects", d.name(), "links"),
	})
	return fs.NewListDirStream(entries), fs.OK
}

func (d *ObjectDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var embedder fs.InodeEmbedder
	mode := uint32(syscall.S_IFREG)
	switch name {
	case "kind":
		kind := d.kind
		embedder = &BytesFile{load: func() ([]byte, error) { return kindText(kind), nil }}
	case "raw":
		embedder = &BytesFile{load: func() ([]byte, error) { return d.repo.Raw(d.cid) }}
	case "data":
		if d.kind != gitobj.Blob {
			return nil, syscall.ENOENT
		}
		embedder = &BytesFile{load: func() ([]byte, error) {
			raw, err := d.repo.Raw(d.cid)
			if err != nil {
				return nil, err
			}
			return blobData(raw)
		}}
	case "links":
		embedder = &LinksDir{repo: d.repo, cid: d.cid, logger: d.logger}
		mode = syscall.S_IFDIR
	default:
		return nil, syscall.ENOENT
	}
	child := d.NewInode(ctx, embedder, fs.StableAttr{
		Mode: mode,
		Ino:  stableIno("objects", d.name(), name),
	})
	return child, fs.OK
}

// BytesFile is a read-only file whose contents come from load. Objects are
// immutable, so the kernel may keep its cache.
type BytesFile struct {
	fs.Inode
	load func() ([]byte, error)
}

var _ = (fs.NodeGetattrer)((*BytesFile)(nil))
var _ = (fs.NodeOpener)((*BytesFile)(nil))
var _ = (fs.NodeReader)((*BytesFile)(nil))

func (f *BytesFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	data, err := f.load()
	if err != nil {
		return syscall.ENOENT
	}
	out.Mode = 0444
	out.Size = uint64(len(data))
	return fs.OK
}

func (f *BytesFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (f *BytesFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := f.load()
	if err != nil {
		return nil, syscall.ENOENT
	}
	return fuse.ReadResultData(readAt(data, dest, off)), fs.OK
}

// LinksDir lists the outgoing links of an object as symlinks to
// ../../<target cid>.
type LinksDir struct {
	fs.Inode
	repo   *dag.Repository
	cid    gocid.Cid
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*LinksDir)(nil))
var _ = (fs.NodeReaddirer)((*LinksDir)(nil))
var _ = (fs.NodeGetattrer)((*LinksDir)(nil))

func (d *LinksDir) ino(parts ...string) uint64 {
	return stableIno(append([]string{"objects", dag.CIDToFilename(d.cid), "links"}, parts...)...)
}

func (d *LinksDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = d.ino()
	return fs.OK
}

func (d *LinksDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	node, err := d.repo.Node(d.cid)
	if err != nil {
		d.logger.Warn("read links", zap.Stringer("cid", d.cid), zap.Error(err))
		return nil, syscall.EIO
	}
	links := objectLinks(node)
	entries := make([]fuse.DirEntry, len(links))
	for i, l := range links {
		entries[i] = fuse.DirEntry{
			Name: l.Name,
			Mode: syscall.S_IFLNK,
			Ino:  d.ino(l.Name),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *LinksDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	node, err := d.repo.Node(d.cid)
	if err != nil {
		return nil, syscall.ENOENT
	}
	target, ok := findLink(node, name)
	if !ok {
		return nil, syscall.ENOENT
	}
	sym := &LinkSymlink{target: "../../" + dag.CIDToFilename(target)}
	child := d.NewInode(ctx, sym, fs.StableAttr{
		Mode: syscall.S_IFLNK,
		Ino:  d.ino(name),
	})
	return child, fs.OK
}

// LinkSymlink is a symlink to another object directory.
type LinkSymlink struct {
	fs.Inode
	target string
}

var _ = (fs.NodeReadlinker)((*LinkSymlink)(nil))
var _ = (fs.NodeGetattrer)((*LinkSymlink)(nil))

func (s *LinkSymlink) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	return []byte(s.target), fs.OK
}

func (s *LinkSymlink) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0777 | syscall.S_IFLNK
	out.Size = uint64(len(s.target))
	return fs.OK
}
