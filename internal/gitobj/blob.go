package gitobj

// ParseBlob copies payload into a blob. It never fails.
func ParseBlob(payload []byte) *BlobNode {
	return &BlobNode{data: append([]byte{}, payload...)}
}
