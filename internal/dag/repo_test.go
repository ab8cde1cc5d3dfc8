package dag

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap/zaptest"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenRepository(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return repo
}

func frame(kind string, payload []byte) []byte {
	return append([]byte(fmt.Sprintf("%s %d\x00", kind, len(payload))), payload...)
}

func digestOf(t *testing.T, raw []byte) []byte {
	t.Helper()
	c, err := gitobj.Sum(raw)
	require.NoError(t, err)
	d, err := gitobj.Digest(c)
	require.NoError(t, err)
	return d
}

type testEntry struct {
	mode, name string
	raw        []byte
}

func rawTree(t *testing.T, entries ...testEntry) []byte {
	t.Helper()
	var payload []byte
	for _, e := range entries {
		payload = append(payload, e.mode+" "+e.name+"\x00"...)
		payload = append(payload, digestOf(t, e.raw)...)
	}
	return frame("tree", payload)
}

func rawCommit(t *testing.T, tree []byte, parents ...[]byte) []byte {
	t.Helper()
	payload := "tree " + hex.EncodeToString(digestOf(t, tree)) + "\n"
	for _, p := range parents {
		payload += "parent " + hex.EncodeToString(digestOf(t, p)) + "\n"
	}
	payload += "author A U Thor <author@example.com> 1517911033 -0600\n"
	payload += "committer C O Mitter <committer@example.com> 1517914295 +0100\n"
	payload += "\nmessage\n"
	return frame("commit", []byte(payload))
}

// testHistory is two commits over a tree holding one blob and one subtree.
type testHistory struct {
	blob, subBlob, subtree, tree, root, head []byte
}

func newTestHistory(t *testing.T) testHistory {
	var h testHistory
	h.blob = frame("blob", []byte("hello\n"))
	h.subBlob = frame("blob", []byte("nested\n"))
	h.subtree = rawTree(t, testEntry{"100644", "nested.txt", h.subBlob})
	h.tree = rawTree(t,
		testEntry{"100644", "hello.txt", h.blob},
		testEntry{"40000", "sub", h.subtree},
	)
	h.root = rawCommit(t, h.tree)
	h.head = rawCommit(t, h.tree, h.root)
	return h
}

func (h testHistory) all() [][]byte {
	return [][]byte{h.blob, h.subBlob, h.subtree, h.tree, h.root, h.head}
}

func mustSum(t *testing.T, raw []byte) gocid.Cid {
	t.Helper()
	c, err := gitobj.Sum(raw)
	require.NoError(t, err)
	return c
}

func TestOpenRepository_Layout(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	repo, err := OpenRepository(root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DataDirName), repo.DataDir())
	for _, p := range []string{"objects", "refs", "meta.json"} {
		_, err := os.Stat(filepath.Join(repo.DataDir(), p))
		assert.NoError(t, err, p)
	}
}

func TestImport_GetNode(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	h := newTestHistory(t)

	c, node, err := repo.Import(h.head)
	require.NoError(t, err)
	assert.True(t, mustSum(t, h.head).Equals(c))
	assert.Equal(t, gitobj.Commit, node.Kind())

	got, err := repo.Node(c)
	require.NoError(t, err)
	commit, ok := got.(*gitobj.CommitNode)
	require.True(t, ok)
	assert.True(t, mustSum(t, h.tree).Equals(commit.Tree))
	require.Len(t, commit.Parents, 1)
	assert.True(t, mustSum(t, h.root).Equals(commit.Parents[0]))
	assert.Equal(t, "A U Thor", commit.Author.Name)

	raw, err := repo.Raw(c)
	require.NoError(t, err)
	assert.Equal(t, h.head, raw)
}

func TestNode_Cached(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	blob := frame("blob", []byte("cached"))
	c, _, err := repo.Import(blob)
	require.NoError(t, err)

	require.NoError(t, os.Remove(repo.Store.path(c)))
	node, err := repo.Node(c)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), node.(*gitobj.BlobNode).Data())

	_, err = repo.Raw(c)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLock(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	unlock, err := repo.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = repo.Lock(ctx)
	assert.ErrorContains(t, err, "held by another process")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	unlock, err = repo.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestImport_RecordsLinks(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	h := newTestHistory(t)

	headCID, _, err := repo.Import(h.head)
	require.NoError(t, err)
	treeCID, _, err := repo.Import(h.tree)
	require.NoError(t, err)

	assert.Equal(t, []LinkEntry{
		{Source: CIDToFilename(headCID), Target: CIDToFilename(treeCID), Type: LinkTree},
		{Source: CIDToFilename(headCID), Target: CIDToFilename(mustSum(t, h.root)), Type: LinkParent},
	}, repo.Links.LinksFrom(CIDToFilename(headCID)))

	assert.Equal(t, []LinkEntry{
		{Source: CIDToFilename(treeCID), Target: CIDToFilename(mustSum(t, h.blob)), Type: "entry:hello.txt"},
		{Source: CIDToFilename(treeCID), Target: CIDToFilename(mustSum(t, h.subtree)), Type: "entry:sub"},
	}, repo.Links.LinksFrom(CIDToFilename(treeCID)))

	// reimport is a no-op
	_, _, err = repo.Import(h.tree)
	require.NoError(t, err)
	assert.Len(t, repo.Links.LinksFrom(CIDToFilename(treeCID)), 2)

	reverse := repo.Links.LinksTo(CIDToFilename(treeCID))
	require.Len(t, reverse, 1)
	assert.Equal(t, CIDToFilename(headCID), reverse[0].Source)
}

func TestImport_RejectsMalformed(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)

	for _, raw := range [][]byte{
		[]byte("blob 9\x00short"),
		frame("tag", []byte("object x\n")),
		frame("commit", []byte("tree abc\n\n")),
	} {
		_, _, err := repo.Import(raw)
		require.Error(t, err)
		assert.NotEqual(t, gitobj.KindUnknown, gitobj.KindOf(err))
		assert.False(t, repo.Store.Has(mustSum(t, raw)))
	}
	cids, err := repo.Store.List()
	require.NoError(t, err)
	assert.Empty(t, cids)
}

func TestLinks_SurviveReopen(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	h := newTestHistory(t)

	repo, err := OpenRepository(root, nil)
	require.NoError(t, err)
	c, _, err := repo.Import(h.head)
	require.NoError(t, err)

	reopened, err := OpenRepository(root, nil)
	require.NoError(t, err)
	assert.Len(t, reopened.Links.LinksFrom(CIDToFilename(c)), 2)
	assert.True(t, reopened.Store.Has(c))
}

func TestWalk(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	h := newTestHistory(t)
	for _, raw := range h.all() {
		_, _, err := repo.Import(raw)
		require.NoError(t, err)
	}

	var kinds []gitobj.ObjectKind
	var visited []gocid.Cid
	err := repo.Walk(mustSum(t, h.head), func(c gocid.Cid, node gitobj.Node) error {
		visited = append(visited, c)
		kinds = append(kinds, node.Kind())
		return nil
	})
	require.NoError(t, err)

	// head -> tree, root -> (tree already seen) blob, subtree -> subBlob
	want := []gocid.Cid{
		mustSum(t, h.head),
		mustSum(t, h.tree),
		mustSum(t, h.root),
		mustSum(t, h.blob),
		mustSum(t, h.subtree),
		mustSum(t, h.subBlob),
	}
	assert.Equal(t, want, visited)
	assert.Equal(t, []gitobj.ObjectKind{
		gitobj.Commit, gitobj.Tree, gitobj.Commit, gitobj.Blob, gitobj.Tree, gitobj.Blob,
	}, kinds)
}

func TestWalk_SkipsMissingAndPrunes(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	h := newTestHistory(t)
	for _, raw := range [][]byte{h.head, h.tree, h.subtree} {
		_, _, err := repo.Import(raw)
		require.NoError(t, err)
	}

	var visited []gocid.Cid
	err := repo.Walk(mustSum(t, h.head), func(c gocid.Cid, node gitobj.Node) error {
		visited = append(visited, c)
		if node.Kind() == gitobj.Tree {
			return SkipLinks
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []gocid.Cid{mustSum(t, h.head), mustSum(t, h.tree)}, visited)

	visited = nil
	err = repo.Walk(mustSum(t, h.head), func(c gocid.Cid, node gitobj.Node) error {
		visited = append(visited, c)
		return nil
	})
	require.NoError(t, err)
	// root commit, blob and subBlob are not stored
	assert.Len(t, visited, 3)
}

func TestWalk_Errors(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	h := newTestHistory(t)

	err := repo.Walk(mustSum(t, h.head), func(gocid.Cid, gitobj.Node) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = repo.Import(h.head)
	require.NoError(t, err)
	boom := errors.New("boom")
	err = repo.Walk(mustSum(t, h.head), func(gocid.Cid, gitobj.Node) error { return boom })
	assert.ErrorIs(t, err, boom)
}
