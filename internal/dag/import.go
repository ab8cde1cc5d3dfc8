package dag

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap"
)

// gitlinkMode marks a tree entry pointing at a submodule commit, which
// lives in another repository.
const gitlinkMode = "160000"

// ObjectReader fetches raw framed objects by CID.
type ObjectReader interface {
	ReadCID(c gocid.Cid) ([]byte, error)
}

// ImportGraph imports root and everything reachable from it out of src.
// Objects already in the store are not fetched again. Submodule entries are
// recorded as links but not followed. It returns the number of newly
// stored objects.
func (r *Repository) ImportGraph(src ObjectReader, root gocid.Cid) (int, error) {
	imported := 0
	visited := map[gocid.Cid]bool{root: true}
	queue := []gocid.Cid{root}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		var node gitobj.Node
		if r.Store.Has(c) {
			n, err := r.Node(c)
			if err != nil {
				return imported, err
			}
			node = n
		} else {
			raw, err := src.ReadCID(c)
			if err != nil {
				return imported, fmt.Errorf("fetch %s: %w", c, err)
			}
			sum, err := gitobj.Sum(raw)
			if err != nil {
				return imported, fmt.Errorf("import %s: %w", c, err)
			}
			if !sum.Equals(c) {
				return imported, fmt.Errorf("import %s: source returned object %s", c, sum)
			}
			_, n, err := r.Import(raw)
			if err != nil {
				return imported, fmt.Errorf("import %s: %w", c, err)
			}
			node = n
			imported++
		}

		for _, link := range followedLinks(node) {
			if !visited[link] {
				visited[link] = true
				queue = append(queue, link)
			}
		}
	}
	r.logger.Info("imported graph", zap.Stringer("root", root), zap.Int("new_objects", imported))
	return imported, nil
}

func followedLinks(node gitobj.Node) []gocid.Cid {
	tree, ok := node.(*gitobj.TreeNode)
	if !ok {
		return node.Links()
	}
	var links []gocid.Cid
	for _, e := range tree.Entries() {
		if e.Mode == gitlinkMode {
			continue
		}
		links = append(links, e.Cid)
	}
	return links
}
