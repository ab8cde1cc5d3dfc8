package dag

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRef_RecordsHistory(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	clock := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.RefLog.now = func() time.Time { return clock }

	first := mustSum(t, frame("blob", []byte("1")))
	second := mustSum(t, frame("blob", []byte("2")))

	require.NoError(t, repo.SetRef("refs/heads/main", first, "import"))
	require.NoError(t, repo.SetRef("refs/heads/main", first, "import again"))
	require.NoError(t, repo.SetRef("HEAD", first, ""))
	require.NoError(t, repo.SetRef("refs/heads/main", second, "fetch"))

	got, err := repo.Refs.Get("refs/heads/main")
	require.NoError(t, err)
	assert.True(t, second.Equals(got))

	history, err := repo.RefLog.History("refs/heads/main")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, RefLogEntry{
		Time:    "2024-01-02T03:04:05Z",
		Ref:     "refs/heads/main",
		Old:     CIDToFilename(first),
		New:     CIDToFilename(second),
		Message: "fetch",
	}, history[0])
	assert.Empty(t, history[1].Old)
	assert.Equal(t, "import", history[1].Message)

	all, err := repo.RefLog.History("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSetRef_InvalidName(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)
	err := repo.SetRef("../escape", mustSum(t, frame("blob", nil)), "")
	assert.Error(t, err)

	history, err := repo.RefLog.History("")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRefLog_SkipsMalformedLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "reflog.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("garbage\n{\"ref\":\"HEAD\",\"new\":\"x\"}\n"), 0644))

	history, err := NewRefLog(path).History("HEAD")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "x", history[0].New)
}
