package fuse

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/systemshift/gitdag/internal/dag"
	"go.uber.org/zap"
)

// RootNode is the mountpoint directory. Contains "objects/", "refs/" and
// "kinds/".
type RootNode struct {
	fs.Inode
	repo   *dag.Repository
	logger *zap.Logger
}

var _ = (fs.NodeOnAdder)((*RootNode)(nil))
var _ = (fs.NodeGetattrer)((*RootNode)(nil))

func (r *RootNode) OnAdd(ctx context.Context) {
	for name, node := range map[string]fs.InodeEmbedder{
		"objects": &ObjectsDir{repo: r.repo, logger: r.logger},
		"refs":    &RefsDir{repo: r.repo, logger: r.logger},
		"kinds":   &KindsDir{repo: r.repo, logger: r.logger},
	} {
		child := r.NewPersistentInode(ctx, node, fs.StableAttr{
			Mode: syscall.S_IFDIR,
			Ino:  stableIno(name),
		})
		r.AddChild(name, child, true)
	}
}

func (r *RootNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("/")
	return fs.OK
}

// ObjectsDir lists every stored object by its base32 CID.
type ObjectsDir struct {
	fs.Inode
	repo   *dag.Repository
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*ObjectsDir)(nil))
var _ = (fs.NodeReaddirer)((*ObjectsDir)(nil))
var _ = (fs.NodeGetattrer)((*ObjectsDir)(nil))

func (d *ObjectsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("objects")
	return fs.OK
}

func (d *ObjectsDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	cids, err := d.repo.Store.List()
	if err != nil {
		d.logger.Warn("list objects", zap.Error(err))
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(cids))
	for i, c := range cids {
		name := dag.CIDToFilename(c)
		entries[i] = fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFDIR,
			Ino:  stableIno("objects", name),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *ObjectsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	c, err := dag.ParseCID(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	node, err := d.repo.Node(c)
	if err != nil {
		return nil, syscall.ENOENT
	}
	objDir := &ObjectDir{repo: d.repo, cid: c, kind: node.Kind(), logger: d.logger}
	child := d.NewInode(ctx, objDir, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("objects", name),
	})
	return child, fs.OK
}

// RefsDir lists refs as symlinks to ../objects/<cid>. Slashes in ref
// names appear as double underscores.
type RefsDir struct {
	fs.Inode
	repo   *dag.Repository
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*RefsDir)(nil))
var _ = (fs.NodeReaddirer)((*RefsDir)(nil))
var _ = (fs.NodeGetattrer)((*RefsDir)(nil))

func (d *RefsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("refs")
	return fs.OK
}

func (d *RefsDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	names, err := d.repo.Refs.List()
	if err != nil {
		d.logger.Warn("list refs", zap.Error(err))
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(names))
	for i, name := range names {
		entry := refEntryName(name)
		entries[i] = fuse.DirEntry{
			Name: entry,
			Mode: syscall.S_IFLNK,
			Ino:  stableIno("refs", entry),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *RefsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	c, err := d.repo.Refs.Get(refNameFromEntry(name))
	if err != nil {
		return nil, syscall.ENOENT
	}
	sym := &LinkSymlink{target: "../objects/" + dag.CIDToFilename(c)}
	child := d.NewInode(ctx, sym, fs.StableAttr{
		Mode: syscall.S_IFLNK,
		Ino:  stableIno("refs", name),
	})
	return child, fs.OK
}
