package dag

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gocid "github.com/ipfs/go-cid"
)

// RefStore maps names such as "HEAD" or "refs/heads/main" to object CIDs.
// Each ref is a file in the refs/ directory holding the base32 CID.
// Names are stored escaped by EscapeRefName.
type RefStore struct {
	dir string
}

// NewRefStore creates a RefStore at the given directory.
func NewRefStore(dir string) (*RefStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create refs dir: %w", err)
	}
	return &RefStore{dir: dir}, nil
}

var (
	refEscaper   = strings.NewReplacer("_", "_-", "/", "__")
	refUnescaper = strings.NewReplacer("_-", "_", "__", "/")
)

// EscapeRefName turns a ref name into a single path component: "/" becomes
// "__" and "_" becomes "_-". Every "_" in the result starts one of those
// two pairs, so UnescapeRefName recovers the name exactly.
func EscapeRefName(name string) string {
	return refEscaper.Replace(name)
}

// UnescapeRefName reverses EscapeRefName.
func UnescapeRefName(file string) string {
	return refUnescaper.Replace(file)
}

func refFilename(name string) string {
	return EscapeRefName(name)
}

func refNameFromFilename(file string) string {
	return UnescapeRefName(file)
}

func validRefName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid ref name %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	return nil
}

// Set writes a ref mapping name -> cid.
func (r *RefStore) Set(name string, c gocid.Cid) error {
	if err := validRefName(name); err != nil {
		return err
	}
	path := filepath.Join(r.dir, refFilename(name))
	return SafeWrite(path, []byte(CIDToFilename(c)+"\n"), 0644)
}

// Get resolves a ref name to a CID.
func (r *RefStore) Get(name string) (gocid.Cid, error) {
	if err := validRefName(name); err != nil {
		return gocid.Undef, err
	}
	data, err := os.ReadFile(filepath.Join(r.dir, refFilename(name)))
	if os.IsNotExist(err) {
		return gocid.Undef, fmt.Errorf("ref %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return gocid.Undef, fmt.Errorf("read ref %s: %w", name, err)
	}
	return ParseCID(string(data))
}

// Delete removes a ref.
func (r *RefStore) Delete(name string) error {
	if err := validRefName(name); err != nil {
		return err
	}
	return os.Remove(filepath.Join(r.dir, refFilename(name)))
}

// Has checks if a ref exists.
func (r *RefStore) Has(name string) bool {
	if validRefName(name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(r.dir, refFilename(name)))
	return err == nil
}

// List returns all ref names, sorted.
func (r *RefStore) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		names = append(names, refNameFromFilename(e.Name()))
	}
	sort.Strings(names)
	return names, nil
}
