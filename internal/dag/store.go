package dag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/systemshift/gitdag/internal/gitobj"
)

// ErrNotFound is returned when an object or ref is absent.
var ErrNotFound = errors.New("not found")

// ObjectStore keeps raw framed git objects on disk, one file per object,
// named by the base32 form of the object's git-raw CID.
type ObjectStore struct {
	dir string // path to objects/ directory
}

// NewObjectStore creates an ObjectStore at the given directory.
func NewObjectStore(dir string) (*ObjectStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create objects dir: %w", err)
	}
	return &ObjectStore{dir: dir}, nil
}

// CIDToFilename returns the base32lower encoding of a CID for use as a filename.
func CIDToFilename(c gocid.Cid) string {
	encoded, _ := multibase.Encode(multibase.Base32, c.Bytes())
	return encoded
}

// ParseCID decodes any multibase CID string, e.g. one produced by
// CIDToFilename or printed by the CLI.
func ParseCID(s string) (gocid.Cid, error) {
	_, data, err := multibase.Decode(strings.TrimSpace(s))
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode cid %q: %w", s, err)
	}
	c, err := gocid.Cast(data)
	if err != nil {
		return gocid.Undef, fmt.Errorf("decode cid %q: %w", s, err)
	}
	return c, nil
}

// Put writes raw to the store under its object CID. Existing objects are
// left alone.
func (s *ObjectStore) Put(raw []byte) (gocid.Cid, error) {
	c, err := gitobj.Sum(raw)
	if err != nil {
		return gocid.Undef, err
	}
	path := s.path(c)
	if _, err := os.Stat(path); err == nil {
		return c, nil
	}
	if err := SafeWrite(path, raw, 0644); err != nil {
		return gocid.Undef, fmt.Errorf("write object: %w", err)
	}
	return c, nil
}

// Get reads an object by CID.
func (s *ObjectStore) Get(c gocid.Cid) ([]byte, error) {
	data, err := os.ReadFile(s.path(c))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("object %s: %w", c, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", c, err)
	}
	return data, nil
}

// Has checks if an object exists.
func (s *ObjectStore) Has(c gocid.Cid) bool {
	_, err := os.Stat(s.path(c))
	return err == nil
}

// List returns the CIDs of every stored object, sorted by filename.
func (s *ObjectStore) List() ([]gocid.Cid, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	cids := make([]gocid.Cid, 0, len(names))
	for _, name := range names {
		c, err := ParseCID(name)
		if err != nil {
			continue // not ours
		}
		cids = append(cids, c)
	}
	return cids, nil
}

func (s *ObjectStore) path(c gocid.Cid) string {
	return filepath.Join(s.dir, CIDToFilename(c))
}
