package gitobj

import "bytes"

// splitAt splits buf around the first occurrence of sep. The separator is
// dropped from both halves. ok is false when sep does not occur.
func splitAt(buf []byte, sep byte) (before, after []byte, ok bool) {
	i := bytes.IndexByte(buf, sep)
	if i < 0 {
		return nil, nil, false
	}
	return buf[:i], buf[i+1:], true
}
