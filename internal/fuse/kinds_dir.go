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

var viewKinds = []gitobj.ObjectKind{gitobj.Blob, gitobj.Tree, gitobj.Commit}

// KindsDir lists one subdirectory per object kind.
type KindsDir struct {
	fs.Inode
	repo   *dag.Repository
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*KindsDir)(nil))
var _ = (fs.NodeReaddirer)((*KindsDir)(nil))
var _ = (fs.NodeGetattrer)((*KindsDir)(nil))

func (d *KindsDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("kinds")
	return fs.OK
}

func (d *KindsDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := make([]fuse.DirEntry, len(viewKinds))
	for i, k := range viewKinds {
		entries[i] = fuse.DirEntry{
			Name: k.String(),
			Mode: syscall.S_IFDIR,
			Ino:  stableIno("kinds", k.String()),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *KindsDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	kind, err := gitobj.ParseObjectKind([]byte(name))
	if err != nil || kind == gitobj.Tag {
		return nil, syscall.ENOENT
	}
	group := &KindGroupDir{repo: d.repo, kind: kind, logger: d.logger}
	child := d.NewInode(ctx, group, fs.StableAttr{
		Mode: syscall.S_IFDIR,
		Ino:  stableIno("kinds", name),
	})
	return child, fs.OK
}

// KindGroupDir lists all objects of one kind as symlinks to
// ../../objects/<cid>.
type KindGroupDir struct {
	fs.Inode
	repo   *dag.Repository
	kind   gitobj.ObjectKind
	logger *zap.Logger
}

var _ = (fs.NodeLookuper)((*KindGroupDir)(nil))
var _ = (fs.NodeReaddirer)((*KindGroupDir)(nil))
var _ = (fs.NodeGetattrer)((*KindGroupDir)(nil))

func (d *KindGroupDir) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0555
	out.Ino = stableIno("kinds", d.kind.String())
	return fs.OK
}

func (d *KindGroupDir) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	cids, err := objectsOfKind(d.repo, d.kind)
	if err != nil {
		d.logger.Warn("list objects by kind", zap.Stringer("kind", d.kind), zap.Error(err))
		return nil, syscall.EIO
	}
	entries := make([]fuse.DirEntry, len(cids))
	for i, c := range cids {
		name := dag.CIDToFilename(c)
		entries[i] = fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFLNK,
			Ino:  stableIno("kinds", d.kind.String(), name),
		}
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (d *KindGroupDir) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	c, err := dag.ParseCID(name)
	if err != nil {
		return nil, syscall.ENOENT
	}
	node, err := d.repo.Node(c)
	if err != nil || node.Kind() != d.kind {
		return nil, syscall.ENOENT
	}
	sym := &LinkSymlink{target: "../../objects/" + name}
	child := d.NewInode(ctx, sym, fs.StableAttr{
		Mode: syscall.S_IFLNK,
		Ino:  stableIno("kinds", d.kind.String(), name),
	})
	return child, fs.OK
}

// objectsOfKind returns the stored objects of the given kind, in store
// order. Objects that fail to decode are skipped.
func objectsOfKind(repo *dag.Repository, kind gitobj.ObjectKind) ([]gocid.Cid, error) {
	cids, err := repo.Store.List()
	if err != nil {
		return nil, err
	}
	var out []gocid.Cid
	for _, c := range cids {
		node, err := repo.Node(c)
		if err != nil {
			continue
		}
		if node.Kind() == kind {
			out = append(out, c)
		}
	}
	return out, nil
}
