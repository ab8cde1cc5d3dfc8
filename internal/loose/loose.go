// Package loose reads objects and refs straight out of a git directory's
// loose object store. Packed objects are not supported.
package loose

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zlib"
	"github.com/systemshift/gitdag/internal/gitobj"
	"go.uber.org/multierr"
)

// ErrObjectNotFound is returned when no loose object file exists for an id.
var ErrObjectNotFound = errors.New("object not found")

// maxSymrefDepth bounds "ref: " indirections when resolving a ref.
const maxSymrefDepth = 5

// Store is a read-only view of <gitdir>/objects.
type Store struct {
	gitDir string
}

// Open checks that gitDir is a directory with an objects/ subdirectory.
func Open(gitDir string) (*Store, error) {
	info, err := os.Stat(filepath.Join(gitDir, "objects"))
	if err != nil {
		return nil, fmt.Errorf("git dir: %q has no objects directory", gitDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("git dir: %q objects is not a directory", gitDir)
	}
	return &Store{gitDir: gitDir}, nil
}

// Read returns the inflated, framed bytes of the object with the given
// 40 character hex id. The content is checked against the id.
func (s *Store) Read(hexID string) ([]byte, error) {
	digest, err := hex.DecodeString(hexID)
	if err != nil || len(digest) != gitobj.DigestSize {
		return nil, fmt.Errorf("object id %q: not a %d byte hex digest", hexID, gitobj.DigestSize)
	}
	return s.read(strings.ToLower(hexID), digest)
}

// ReadCID is Read for a git-raw CID.
func (s *Store) ReadCID(c gocid.Cid) ([]byte, error) {
	digest, err := gitobj.Digest(c)
	if err != nil {
		return nil, err
	}
	return s.read(hex.EncodeToString(digest), digest)
}

func (s *Store) read(hexID string, digest []byte) (_ []byte, retErr error) {
	path := filepath.Join(s.gitDir, "objects", hexID[:2], hexID[2:])
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, hexID)
	}
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", hexID, err)
	}
	defer func() {
		retErr = multierr.Append(retErr, f.Close())
	}()

	zr, err := zlib.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("inflate object %s: %w", hexID, err)
	}
	defer func() {
		retErr = multierr.Append(retErr, zr.Close())
	}()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate object %s: %w", hexID, err)
	}

	c, err := gitobj.Sum(raw)
	if err != nil {
		return nil, err
	}
	got, err := gitobj.Digest(c)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(got, digest) {
		return nil, fmt.Errorf("object %s: content hashes to %x", hexID, got)
	}
	return raw, nil
}

// ResolveRef turns "HEAD", a full ref name like "refs/heads/main" or a
// short branch or tag name into a hex object id. Loose refs win over
// packed-refs.
func (s *Store) ResolveRef(name string) (string, error) {
	for depth := 0; depth < maxSymrefDepth; depth++ {
		value, err := s.lookupRef(name)
		if err != nil {
			return "", err
		}
		target, ok := strings.CutPrefix(value, "ref: ")
		if !ok {
			if _, err := hex.DecodeString(value); err != nil || len(value) != hex.EncodedLen(gitobj.DigestSize) {
				return "", fmt.Errorf("ref %s: malformed value %q", name, value)
			}
			return value, nil
		}
		name = target
	}
	return "", fmt.Errorf("ref %s: too many symbolic refs", name)
}

func (s *Store) lookupRef(name string) (string, error) {
	candidates := []string{name}
	if !strings.HasPrefix(name, "refs/") && name != "HEAD" {
		candidates = append(candidates, "refs/"+name, "refs/tags/"+name, "refs/heads/"+name)
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(filepath.Join(s.gitDir, filepath.FromSlash(candidate)))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read ref %s: %w", candidate, err)
		}
	}
	packed, err := s.packedRefs()
	if err != nil {
		return "", err
	}
	for _, candidate := range candidates {
		if id, ok := packed[candidate]; ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("ref %s: not found", name)
}

func (s *Store) packedRefs() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.gitDir, "packed-refs"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	refs := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		id, ref, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		refs[ref] = id
	}
	return refs, nil
}

// Resolve accepts a hex object id or anything ResolveRef does and returns
// the object's identifier.
func (s *Store) Resolve(rev string) (gocid.Cid, error) {
	if len(rev) == hex.EncodedLen(gitobj.DigestSize) {
		if c, err := gitobj.HexToCID(rev); err == nil {
			return c, nil
		}
	}
	id, err := s.ResolveRef(rev)
	if err != nil {
		return gocid.Undef, err
	}
	return gitobj.HexToCID(id)
}
