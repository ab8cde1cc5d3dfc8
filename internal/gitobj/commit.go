package gitobj

import (
	"encoding/hex"

	gocid "github.com/ipfs/go-cid"
)

// ParseCommit decodes the header lines of a commit payload:
//
//	tree <hex>
//	parent <hex>        (zero or more)
//	author <user info>
//	committer <user info>
//	<blank line>
//	<message>
//
// Any other header field is rejected. The message is not decoded.
func ParseCommit(payload []byte) (*CommitNode, error) {
	var (
		commit        CommitNode
		haveTree      bool
		haveAuthor    bool
		haveCommitter bool
	)
	rest := payload
	for {
		line, next, ok := splitAt(rest, '\n')
		if !ok {
			return nil, &Error{Kind: UnexpectedEndOfHeader, Remaining: len(rest)}
		}
		rest = next
		if len(line) == 0 {
			break
		}
		field, value, ok := splitAt(line, ' ')
		if !ok {
			return nil, &Error{Kind: MalformedHeaderLine, Token: append([]byte(nil), line...)}
		}
		switch string(field) {
		case "tree":
			c, err := hexToCID("tree", value)
			if err != nil {
				return nil, err
			}
			if haveTree {
				return nil, newError(DuplicateTreeField, "tree")
			}
			commit.Tree, haveTree = c, true
		case "parent":
			c, err := hexToCID("parent", value)
			if err != nil {
				return nil, err
			}
			commit.Parents = append(commit.Parents, c)
		case "author":
			if haveAuthor {
				return nil, newError(DuplicateField, "author")
			}
			info, err := ParseUserInfo(value)
			if err != nil {
				return nil, err
			}
			commit.Author, haveAuthor = info, true
		case "committer":
			if haveCommitter {
				return nil, newError(DuplicateField, "committer")
			}
			info, err := ParseUserInfo(value)
			if err != nil {
				return nil, err
			}
			commit.Committer, haveCommitter = info, true
		default:
			return nil, &Error{Kind: UnrecognizedHeaderField, Token: append([]byte(nil), field...)}
		}
	}

	switch {
	case !haveTree:
		return nil, newError(MissingRequiredField, "tree")
	case !haveAuthor:
		return nil, newError(MissingRequiredField, "author")
	case !haveCommitter:
		return nil, newError(MissingRequiredField, "committer")
	}
	return &commit, nil
}

func hexToCID(field string, value []byte) (gocid.Cid, error) {
	digest := make([]byte, hex.DecodedLen(len(value)))
	if _, err := hex.Decode(digest, value); err != nil {
		return gocid.Undef, &Error{Kind: InvalidHexDigest, Field: field, Err: err}
	}
	c, err := DigestToCID(digest)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Field = field
		}
		return gocid.Undef, err
	}
	return c, nil
}
