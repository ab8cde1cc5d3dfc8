package fuse

import (
	"fmt"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/gitdag/internal/dag"
	"github.com/systemshift/gitdag/internal/gitobj"
)

// objectLink is one entry of an object's links/ directory.
type objectLink struct {
	Name   string
	Target gocid.Cid
}

// objectLinks names the outgoing links of node. Commits expose "tree" and
// "parent-N"; trees expose their entry names, later duplicates replacing
// earlier ones. Entry names that cannot be a directory entry are left out.
func objectLinks(node gitobj.Node) []objectLink {
	switch n := node.(type) {
	case *gitobj.CommitNode:
		links := []objectLink{{Name: "tree", Target: n.Tree}}
		for i, p := range n.Parents {
			links = append(links, objectLink{Name: fmt.Sprintf("parent-%d", i), Target: p})
		}
		return links
	case *gitobj.TreeNode:
		var links []objectLink
		seen := make(map[string]int)
		for _, e := range n.Entries() {
			if !validEntryName(e.Name) {
				continue
			}
			if i, ok := seen[e.Name]; ok {
				links[i].Target = e.Cid
				continue
			}
			seen[e.Name] = len(links)
			links = append(links, objectLink{Name: e.Name, Target: e.Cid})
		}
		return links
	}
	return nil
}

// validEntryName reports whether a tree entry name can be listed as a
// single path component.
func validEntryName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

func findLink(node gitobj.Node, name string) (gocid.Cid, bool) {
	if tree, ok := node.(*gitobj.TreeNode); ok {
		if !validEntryName(name) {
			return gocid.Undef, false
		}
		e, ok := tree.Entry(name)
		return e.Cid, ok
	}
	for _, l := range objectLinks(node) {
		if l.Name == name {
			return l.Target, true
		}
	}
	return gocid.Undef, false
}

// objectFiles lists the regular files inside objects/<cid>/.
func objectFiles(kind gitobj.ObjectKind) []string {
	if kind == gitobj.Blob {
		return []string{"kind", "raw", "data"}
	}
	return []string{"kind", "raw"}
}

func kindText(kind gitobj.ObjectKind) []byte {
	return []byte(kind.String() + "\n")
}

// blobData returns the payload of a raw blob, after the header.
func blobData(raw []byte) ([]byte, error) {
	payload, _, err := gitobj.ParseHeader(raw)
	return payload, err
}

// refEntryName turns a ref name into a single path component.
func refEntryName(name string) string {
	return dag.EscapeRefName(name)
}

func refNameFromEntry(entry string) string {
	return dag.UnescapeRefName(entry)
}

// readAt serves a read of len(dest) bytes at off from data.
func readAt(data, dest []byte, off int64) []byte {
	if off >= int64(len(data)) {
		return nil
	}
	end := off + int64(len(dest))
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[off:end]
}
