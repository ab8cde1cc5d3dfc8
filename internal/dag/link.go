package dag

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Link types recorded in the journal. Tree entries use LinkEntryPrefix
// followed by the entry name.
const (
	LinkTree        = "tree"
	LinkParent      = "parent"
	LinkEntryPrefix = "entry:"
)

// LinkEntry is a single link record in the JSONL journal. Source and Target
// are base32 CIDs.
type LinkEntry struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// LinkIndex maintains an append-only JSONL journal and in-memory forward/reverse maps.
type LinkIndex struct {
	mu      sync.RWMutex
	path    string
	forward map[string][]LinkEntry // source -> links, in journal order
	reverse map[string][]LinkEntry // target -> links
}

// NewLinkIndex creates a LinkIndex, loading existing entries from the journal file.
func NewLinkIndex(path string) (*LinkIndex, error) {
	idx := &LinkIndex{
		path:    path,
		forward: make(map[string][]LinkEntry),
		reverse: make(map[string][]LinkEntry),
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *LinkIndex) load() error {
	f, err := os.Open(idx.path)
	if os.IsNotExist(err) {
		return nil // no journal yet
	}
	if err != nil {
		return fmt.Errorf("open link journal: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LinkEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		idx.insert(entry)
	}
	return scanner.Err()
}

func (idx *LinkIndex) has(entry LinkEntry) bool {
	for _, existing := range idx.forward[entry.Source] {
		if existing == entry {
			return true
		}
	}
	return false
}

func (idx *LinkIndex) insert(entry LinkEntry) {
	if idx.has(entry) {
		return
	}
	idx.forward[entry.Source] = append(idx.forward[entry.Source], entry)
	idx.reverse[entry.Target] = append(idx.reverse[entry.Target], entry)
}

// Add appends links to the journal in a single write and updates the
// in-memory indexes. Links already present are skipped.
func (idx *LinkIndex) Add(entries ...LinkEntry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var buf bytes.Buffer
	var fresh []LinkEntry
	seen := make(map[LinkEntry]bool)
	for _, entry := range entries {
		if seen[entry] || idx.has(entry) {
			continue
		}
		seen[entry] = true
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode link entry: %w", err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
		fresh = append(fresh, entry)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := SafeAppend(idx.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write link entry: %w", err)
	}
	for _, entry := range fresh {
		idx.insert(entry)
	}
	return nil
}

// LinksFrom returns all links where the given CID is the source.
func (idx *LinkIndex) LinksFrom(source string) []LinkEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]LinkEntry(nil), idx.forward[source]...)
}

// LinksTo returns all links where the given CID is the target.
func (idx *LinkIndex) LinksTo(target string) []LinkEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]LinkEntry(nil), idx.reverse[target]...)
}
