package gitobj

import "unicode/utf8"

// ParseTree decodes a tree payload, a sequence of
//
//	<mode> SP <name> NUL <20 byte sha1>
//
// entries with no separator between them. The payload must be consumed
// exactly; an empty payload is an empty tree.
func ParseTree(payload []byte) (*TreeNode, error) {
	tree := &TreeNode{}
	rest := payload
	for len(rest) > 0 {
		entry, next, err := parseTreeEntry(rest)
		if err != nil {
			return nil, err
		}
		tree.add(entry)
		rest = next
	}
	return tree, nil
}

func parseTreeEntry(buf []byte) (TreeEntry, []byte, error) {
	mode, rest, ok := splitAt(buf, ' ')
	if !ok {
		return TreeEntry{}, nil, &Error{Kind: MissingEntryMode, Field: "mode", Remaining: len(buf)}
	}
	name, rest, ok := splitAt(rest, 0)
	if !ok {
		return TreeEntry{}, nil, &Error{Kind: MissingEntryName, Field: "name", Remaining: len(rest)}
	}
	if len(rest) < DigestSize {
		return TreeEntry{}, nil, &Error{Kind: TruncatedEntryHash, Field: string(name), Remaining: len(rest)}
	}
	digest, rest := rest[:DigestSize], rest[DigestSize:]

	if !utf8.Valid(mode) {
		return TreeEntry{}, nil, newError(NonUTF8EntryField, "mode")
	}
	if !utf8.Valid(name) {
		return TreeEntry{}, nil, newError(NonUTF8EntryField, "name")
	}
	c, err := DigestToCID(digest)
	if err != nil {
		return TreeEntry{}, nil, err
	}
	return TreeEntry{Mode: string(mode), Name: string(name), Cid: c}, rest, nil
}
