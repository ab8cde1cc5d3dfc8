// Package gitobj decodes loose git objects (blob, tree, commit) into nodes
// whose links are CIDv1 git-raw identifiers built from the embedded SHA-1
// object ids. Parsing is pure: it does no I/O and holds no shared state.
package gitobj

// ParseObject validates the object header of raw and decodes the payload
// according to its declared type. Tag objects are recognized but not
// supported.
func ParseObject(raw []byte) (Node, error) {
	payload, kind, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case Blob:
		return ParseBlob(payload), nil
	case Tree:
		tree, err := ParseTree(payload)
		if err != nil {
			return nil, err
		}
		return tree, nil
	case Commit:
		commit, err := ParseCommit(payload)
		if err != nil {
			return nil, err
		}
		return commit, nil
	default:
		return nil, &Error{Kind: UnsupportedObjectKind, Token: []byte(kind.String())}
	}
}
