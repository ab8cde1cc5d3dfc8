package dag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	gocid "github.com/ipfs/go-cid"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap"
)

// DataDirName is the directory created under a repository root.
const DataDirName = ".gitdag"

// nodeCacheSize bounds how many decoded objects Node keeps around.
const nodeCacheSize = 1024

// SkipLinks can be returned by a WalkFunc to stop the walk from following
// the links of the node just visited.
var SkipLinks = errors.New("skip links")

// WalkFunc is called for each stored node reached by Walk.
type WalkFunc func(c gocid.Cid, node gitobj.Node) error

// Repository is the top-level facade over the object store, refs and the
// link journal.
type Repository struct {
	root   string
	Store  *ObjectStore
	Refs   *RefStore
	Links  *LinkIndex
	RefLog *RefLog
	nodes  *lru.Cache[gocid.Cid, gitobj.Node]
	logger *zap.Logger
}

// OpenRepository opens or creates a repository at the given path.
func OpenRepository(root string, logger *zap.Logger) (*Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dataDir := filepath.Join(root, DataDirName)

	for _, dir := range []string{
		dataDir,
		filepath.Join(dataDir, "objects"),
		filepath.Join(dataDir, "refs"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	metaPath := filepath.Join(dataDir, "meta.json")
	if _, err := os.Stat(metaPath); os.IsNotExist(err) {
		meta := map[string]interface{}{
			"version": 1,
			"codec":   "git-raw",
			"created": time.Now().UTC().Format(time.RFC3339),
		}
		data, _ := json.MarshalIndent(meta, "", "  ")
		if err := SafeWrite(metaPath, data, 0644); err != nil {
			return nil, fmt.Errorf("write meta: %w", err)
		}
	}

	store, err := NewObjectStore(filepath.Join(dataDir, "objects"))
	if err != nil {
		return nil, err
	}
	refs, err := NewRefStore(filepath.Join(dataDir, "refs"))
	if err != nil {
		return nil, err
	}
	links, err := NewLinkIndex(filepath.Join(dataDir, "links.jsonl"))
	if err != nil {
		return nil, err
	}
	nodes, err := lru.New[gocid.Cid, gitobj.Node](nodeCacheSize)
	if err != nil {
		return nil, err
	}

	return &Repository{
		root:   root,
		Store:  store,
		Refs:   refs,
		Links:  links,
		RefLog: NewRefLog(filepath.Join(dataDir, "reflog.jsonl")),
		nodes:  nodes,
		logger: logger.Named("dag"),
	}, nil
}

// DataDir returns the path to the .gitdag/ directory.
func (r *Repository) DataDir() string {
	return filepath.Join(r.root, DataDirName)
}

// Lock takes an exclusive lock on the repository so that concurrent
// processes do not interleave imports. It waits until ctx is done; callers
// should pass a context with a deadline. The returned function releases it.
func (r *Repository) Lock(ctx context.Context) (func() error, error) {
	path := filepath.Join(r.DataDir(), "lock")
	fl := flock.New(path)
	if _, err := fl.TryLockContext(ctx, 100*time.Millisecond); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lock %s: held by another process: %w", path, err)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return fl.Unlock, nil
}

// Import decodes raw, stores it under its object CID and journals its
// outgoing links. Malformed objects are rejected before anything is
// written.
func (r *Repository) Import(raw []byte) (gocid.Cid, gitobj.Node, error) {
	node, err := gitobj.ParseObject(raw)
	if err != nil {
		return gocid.Undef, nil, fmt.Errorf("decode object: %w", err)
	}
	c, err := r.Store.Put(raw)
	if err != nil {
		return gocid.Undef, nil, fmt.Errorf("store object: %w", err)
	}
	r.nodes.Add(c, node)
	if err := r.Links.Add(LinkEntries(c, node)...); err != nil {
		return gocid.Undef, nil, err
	}
	r.logger.Debug("imported object",
		zap.Stringer("cid", c),
		zap.Stringer("kind", node.Kind()),
		zap.Int("links", len(node.Links())),
	)
	return c, node, nil
}

// Raw returns the stored bytes of an object.
func (r *Repository) Raw(c gocid.Cid) ([]byte, error) {
	return r.Store.Get(c)
}

// Node loads and decodes a stored object. Recently used nodes are cached
// and shared between callers, so they must not be modified.
func (r *Repository) Node(c gocid.Cid) (gitobj.Node, error) {
	if node, ok := r.nodes.Get(c); ok {
		return node, nil
	}
	raw, err := r.Store.Get(c)
	if err != nil {
		return nil, err
	}
	node, err := gitobj.ParseObject(raw)
	if err != nil {
		return nil, fmt.Errorf("decode object %s: %w", c, err)
	}
	r.nodes.Add(c, node)
	return node, nil
}

// Walk visits root and every stored object reachable from it,
// breadth-first, each at most once. Links to objects that are not in the
// store are skipped.
func (r *Repository) Walk(root gocid.Cid, fn WalkFunc) error {
	visited := map[gocid.Cid]bool{root: true}
	queue := []gocid.Cid{root}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		node, err := r.Node(c)
		if errors.Is(err, ErrNotFound) && c != root {
			r.logger.Debug("walk: link target not stored", zap.Stringer("cid", c))
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(c, node); err != nil {
			if errors.Is(err, SkipLinks) {
				continue
			}
			return err
		}
		for _, link := range node.Links() {
			if !visited[link] {
				visited[link] = true
				queue = append(queue, link)
			}
		}
	}
	return nil
}

// LinkEntries describes the outgoing links of node, stored under c, as
// journal records.
func LinkEntries(c gocid.Cid, node gitobj.Node) []LinkEntry {
	source := CIDToFilename(c)
	var entries []LinkEntry
	switch n := node.(type) {
	case *gitobj.CommitNode:
		entries = append(entries, LinkEntry{Source: source, Target: CIDToFilename(n.Tree), Type: LinkTree})
		for _, p := range n.Parents {
			entries = append(entries, LinkEntry{Source: source, Target: CIDToFilename(p), Type: LinkParent})
		}
	case *gitobj.TreeNode:
		for _, e := range n.Entries() {
			entries = append(entries, LinkEntry{Source: source, Target: CIDToFilename(e.Cid), Type: LinkEntryPrefix + e.Name})
		}
	}
	return entries
}
