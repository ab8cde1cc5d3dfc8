package gitobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc    string
		in      string
		kind    ObjectKind
		payload string
	}{
		{desc: "blob", in: "blob 5\x00hello", kind: Blob, payload: "hello"},
		{desc: "empty blob", in: "blob 0\x00", kind: Blob, payload: ""},
		{desc: "tree", in: "tree 0\x00", kind: Tree, payload: ""},
		{desc: "commit", in: "commit 3\x00a\x00b", kind: Commit, payload: "a\x00b"},
		{desc: "tag", in: "tag 1\x00x", kind: Tag, payload: "x"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()
			payload, kind, err := ParseHeader([]byte(test.in))
			require.NoError(t, err)
			assert.Equal(t, test.kind, kind)
			assert.Equal(t, test.payload, string(payload))
		})
	}
}

func TestParseHeader_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		desc string
		in   string
		kind ErrorKind
	}{
		{desc: "empty", in: "", kind: MissingNullTerminator},
		{desc: "no null", in: "blob 5 hello", kind: MissingNullTerminator},
		{desc: "no space", in: "blob5\x00hello", kind: MalformedHeader},
		{desc: "unknown type", in: "blub 5\x00hello", kind: UnknownObjectType},
		{desc: "uppercase type", in: "BLOB 5\x00hello", kind: UnknownObjectType},
		{desc: "non numeric size", in: "blob five\x00hello", kind: InvalidSizeField},
		{desc: "negative size", in: "blob -5\x00hello", kind: InvalidSizeField},
		{desc: "signed size", in: "blob +5\x00hello", kind: InvalidSizeField},
		{desc: "empty size", in: "blob \x00hello", kind: InvalidSizeField},
		{desc: "non utf-8 size", in: "blob \xff\x00hello", kind: InvalidSizeField},
		{desc: "overflowing size", in: "blob 99999999999999999999\x00", kind: InvalidSizeField},
		{desc: "size too small", in: "blob 4\x00hello", kind: SizeMismatch},
		{desc: "size too large", in: "blob 6\x00hello", kind: SizeMismatch},
	}
	for _, test := range tests {
		test := test
		t.Run(test.desc, func(t *testing.T) {
			t.Parallel()
			payload, _, err := ParseHeader([]byte(test.in))
			require.Error(t, err)
			assert.Nil(t, payload)
			assert.Equal(t, test.kind, KindOf(err))
		})
	}
}

func TestParseHeader_SizeMismatchCarriesSizes(t *testing.T) {
	t.Parallel()
	_, _, err := ParseHeader([]byte("blob 10\x00abc"))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, SizeMismatch, e.Kind)
	assert.Equal(t, int64(10), e.Declared)
	assert.Equal(t, int64(3), e.Actual)
	assert.ErrorIs(t, err, &Error{Kind: SizeMismatch})
	assert.NotErrorIs(t, err, &Error{Kind: MalformedHeader})
	assert.Contains(t, err.Error(), "10 bytes declared, 3 bytes present")
}

func TestParseHeader_UnknownTypeCarriesToken(t *testing.T) {
	t.Parallel()
	_, _, err := ParseHeader([]byte("note 0\x00"))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []byte("note"), e.Token)
	assert.Contains(t, err.Error(), `"note"`)
}

func TestObjectKindString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "blob", Blob.String())
	assert.Equal(t, "tree", Tree.String())
	assert.Equal(t, "commit", Commit.String())
	assert.Equal(t, "tag", Tag.String())
	assert.Equal(t, "ObjectKind(9)", ObjectKind(9).String())
}
