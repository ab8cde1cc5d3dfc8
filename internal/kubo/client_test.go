package kubo

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systemshift/gitdag/internal/dag"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/zap/zaptest"
)

// fakeDaemon serves the handful of RPC endpoints the client uses and
// hashes blocks the same way a real daemon does for git-raw/sha1.
type fakeDaemon struct {
	mu     sync.Mutex
	blocks map[string][]byte
	pinned []string
	// rewrite, when set, replaces the key returned by block/put.
	rewrite string
}

func newFakeDaemon(t *testing.T) (*fakeDaemon, *httptest.Server) {
	d := &fakeDaemon{blocks: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/id", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v0/block/put", d.blockPut)
	mux.HandleFunc("/api/v0/block/get", d.blockGet)
	mux.HandleFunc("/api/v0/pin/add", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.pinned = append(d.pinned, r.URL.Query().Get("arg"))
		d.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return d, srv
}

func (d *fakeDaemon) blockPut(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("cid-codec") != "git-raw" || q.Get("mhtype") != "sha1" {
		http.Error(w, "unexpected format", http.StatusBadRequest)
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c, err := gitobj.Sum(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	key := c.String()
	d.mu.Lock()
	d.blocks[key] = raw
	if d.rewrite != "" {
		key = d.rewrite
	}
	d.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"Key": key, "Size": len(raw)})
}

func (d *fakeDaemon) blockGet(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	raw, ok := d.blocks[r.URL.Query().Get("arg")]
	d.mu.Unlock()
	if !ok {
		http.Error(w, "block not found", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(raw)
}

func (d *fakeDaemon) state() (blocks int, pinned []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.blocks), append([]string(nil), d.pinned...)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	return NewClient(srv.URL+"/api/v0/", time.Second, zaptest.NewLogger(t))
}

func TestIsAvailable(t *testing.T) {
	t.Parallel()
	_, srv := newFakeDaemon(t)
	assert.True(t, newTestClient(t, srv).IsAvailable())

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	assert.False(t, NewClient(url, time.Second, nil).IsAvailable())
}

func TestBlockPutGet(t *testing.T) {
	t.Parallel()
	_, srv := newFakeDaemon(t)
	k := newTestClient(t, srv)

	raw := []byte("blob 5\x00hello")
	c, err := k.BlockPut(raw)
	require.NoError(t, err)
	want, err := gitobj.Sum(raw)
	require.NoError(t, err)
	assert.True(t, want.Equals(c))
	assert.Equal(t, uint64(gocid.GitRaw), c.Type())

	got, err := k.BlockGet(c)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	other, err := gitobj.Sum([]byte("blob 0\x00"))
	require.NoError(t, err)
	_, err = k.ReadCID(other)
	assert.ErrorContains(t, err, "status 500")
}

func TestBlockPut_BadKey(t *testing.T) {
	t.Parallel()
	d, srv := newFakeDaemon(t)
	d.rewrite = "not-a-cid"
	_, err := newTestClient(t, srv).BlockPut([]byte("blob 0\x00"))
	assert.ErrorContains(t, err, "bad key")
}

func frame(kind string, payload []byte) []byte {
	out := []byte(kind + " " + strconv.Itoa(len(payload)) + "\x00")
	return append(out, payload...)
}

func importAll(t *testing.T, repo *dag.Repository, raws ...[]byte) []gocid.Cid {
	t.Helper()
	var out []gocid.Cid
	for _, raw := range raws {
		c, _, err := repo.Import(raw)
		require.NoError(t, err)
		out = append(out, c)
	}
	return out
}

func testTree(t *testing.T, blob []byte) []byte {
	t.Helper()
	c, err := gitobj.Sum(blob)
	require.NoError(t, err)
	digest, err := gitobj.Digest(c)
	require.NoError(t, err)
	payload := append([]byte("100644 hello.txt\x00"), digest...)
	return frame("tree", payload)
}

func TestPublish(t *testing.T) {
	t.Parallel()
	d, srv := newFakeDaemon(t)
	k := newTestClient(t, srv)
	repo, err := dag.OpenRepository(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	blob := frame("blob", []byte("hello"))
	cids := importAll(t, repo, blob, testTree(t, blob))
	root := cids[1]

	n, err := Publish(context.Background(), k, repo, root, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	blocks, pinned := d.state()
	assert.Equal(t, 2, blocks)
	assert.Equal(t, []string{root.String()}, pinned)
}

func TestPublish_Mismatch(t *testing.T) {
	t.Parallel()
	d, srv := newFakeDaemon(t)
	k := newTestClient(t, srv)
	repo, err := dag.OpenRepository(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)

	cids := importAll(t, repo, frame("blob", []byte("a")))
	other, err := gitobj.Sum(frame("blob", []byte("b")))
	require.NoError(t, err)
	d.rewrite = other.String()

	_, err = Publish(context.Background(), k, repo, cids[0], true)
	assert.ErrorContains(t, err, "daemon stored it as")
	_, pinned := d.state()
	assert.Empty(t, pinned)
}
