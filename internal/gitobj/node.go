package gitobj

import (
	gocid "github.com/ipfs/go-cid"
)

// Node is a decoded object. Links returns every identifier the object
// references, in a stable order; the targets are not resolved.
type Node interface {
	Kind() ObjectKind
	Links() []gocid.Cid
	node()
}

var (
	_ Node = (*BlobNode)(nil)
	_ Node = (*TreeNode)(nil)
	_ Node = (*CommitNode)(nil)
)

// BlobNode is an opaque file payload.
type BlobNode struct {
	data []byte
}

func (b *BlobNode) Kind() ObjectKind { return Blob }

// Links is always empty for blobs.
func (b *BlobNode) Links() []gocid.Cid { return nil }

// Data returns the blob contents. The caller must not modify it.
func (b *BlobNode) Data() []byte { return b.data }

func (b *BlobNode) node() {}

// TreeEntry is one row of a tree listing.
type TreeEntry struct {
	Mode string
	Name string
	Cid  gocid.Cid
}

// TreeNode is a directory listing. Entries keep the order they were
// encoded in.
type TreeNode struct {
	entries []TreeEntry
	byName  map[string]int
}

func (t *TreeNode) Kind() ObjectKind { return Tree }

// Links returns the entry identifiers in declaration order, including
// entries that share a name.
func (t *TreeNode) Links() []gocid.Cid {
	links := make([]gocid.Cid, len(t.entries))
	for i, e := range t.entries {
		links[i] = e.Cid
	}
	return links
}

// Entries returns a copy of the entries in declaration order.
func (t *TreeNode) Entries() []TreeEntry {
	return append([]TreeEntry(nil), t.entries...)
}

// Len is the number of entries, duplicates included.
func (t *TreeNode) Len() int { return len(t.entries) }

// Entry looks up an entry by name. When a name occurs twice the later entry
// wins.
func (t *TreeNode) Entry(name string) (TreeEntry, bool) {
	i, ok := t.byName[name]
	if !ok {
		return TreeEntry{}, false
	}
	return t.entries[i], true
}

func (t *TreeNode) add(e TreeEntry) {
	if t.byName == nil {
		t.byName = make(map[string]int)
	}
	t.byName[e.Name] = len(t.entries)
	t.entries = append(t.entries, e)
}

func (t *TreeNode) node() {}

// CommitNode holds the header of a commit. The message is not decoded.
type CommitNode struct {
	Tree      gocid.Cid
	Parents   []gocid.Cid
	Author    UserInfo
	Committer UserInfo
}

func (c *CommitNode) Kind() ObjectKind { return Commit }

// Links returns the tree first, then the parents in header order.
func (c *CommitNode) Links() []gocid.Cid {
	links := make([]gocid.Cid, 0, 1+len(c.Parents))
	links = append(links, c.Tree)
	return append(links, c.Parents...)
}

func (c *CommitNode) node() {}
