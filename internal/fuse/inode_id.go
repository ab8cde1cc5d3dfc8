package fuse

import (
	"hash/fnv"
	"strings"
)

// stableIno returns a stable inode number for the path made of parts.
func stableIno(parts ...string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.Join(parts, "/")))
	return h.Sum64()
}
