package dag

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	gocid "github.com/ipfs/go-cid"
)

// RefLogEntry records one ref update. Old is empty when the ref was
// created. CIDs are base32.
type RefLogEntry struct {
	Time    string `json:"ts"`
	Ref     string `json:"ref"`
	Old     string `json:"old,omitempty"`
	New     string `json:"new"`
	Message string `json:"msg,omitempty"`
}

// RefLog is an append-only JSONL history of ref updates.
type RefLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewRefLog opens the reflog at path. The file is created on first write.
func NewRefLog(path string) *RefLog {
	return &RefLog{path: path, now: time.Now}
}

func (l *RefLog) append(entry RefLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Time = l.now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode reflog entry: %w", err)
	}
	if err := SafeAppend(l.path, append(data, '\n')); err != nil {
		return fmt.Errorf("write reflog: %w", err)
	}
	return nil
}

// History returns the updates of ref, newest first. An empty ref returns
// every update.
func (l *RefLog) History(ref string) ([]RefLogEntry, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open reflog: %w", err)
	}
	defer f.Close()

	var entries []RefLogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry RefLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // skip malformed lines
		}
		if ref == "" || entry.Ref == ref {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// SetRef points name at c and records the change in the reflog. Setting a
// ref to the value it already has is a no-op.
func (r *Repository) SetRef(name string, c gocid.Cid, message string) error {
	entry := RefLogEntry{Ref: name, New: CIDToFilename(c), Message: message}
	if old, err := r.Refs.Get(name); err == nil {
		if old.Equals(c) {
			return nil
		}
		entry.Old = CIDToFilename(old)
	}
	if err := r.Refs.Set(name, c); err != nil {
		return err
	}
	return r.RefLog.append(entry)
}
