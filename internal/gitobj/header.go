package gitobj

import (
	"math"
	"strconv"
)

// ObjectKind is the type token of an object header.
type ObjectKind int

const (
	Blob ObjectKind = iota + 1
	Tree
	Commit
	Tag
)

func (k ObjectKind) String() string {
	switch k {
	case Blob:
		return "blob"
	case Tree:
		return "tree"
	case Commit:
		return "commit"
	case Tag:
		return "tag"
	}
	return "ObjectKind(" + strconv.Itoa(int(k)) + ")"
}

// ParseObjectKind maps a header type token to its kind.
func ParseObjectKind(token []byte) (ObjectKind, error) {
	switch string(token) {
	case "blob":
		return Blob, nil
	case "tree":
		return Tree, nil
	case "commit":
		return Commit, nil
	case "tag":
		return Tag, nil
	}
	return 0, &Error{Kind: UnknownObjectType, Token: append([]byte(nil), token...)}
}

// ParseHeader validates the "<type> <size>\x00" framing of buf and returns
// the payload that follows it. The declared size must equal the payload
// length exactly.
func ParseHeader(buf []byte) ([]byte, ObjectKind, error) {
	header, payload, ok := splitAt(buf, 0)
	if !ok {
		return nil, 0, newError(MissingNullTerminator, "")
	}
	typ, size, ok := splitAt(header, ' ')
	if !ok {
		return nil, 0, newError(MalformedHeader, "")
	}
	kind, err := ParseObjectKind(typ)
	if err != nil {
		return nil, 0, err
	}
	declared, err := strconv.ParseUint(string(size), 10, 64)
	if err == nil && declared > math.MaxInt64 {
		err = strconv.ErrRange
	}
	if err != nil {
		return nil, 0, &Error{Kind: InvalidSizeField, Token: append([]byte(nil), size...), Err: err}
	}
	if int64(declared) != int64(len(payload)) {
		return nil, 0, &Error{
			Kind:     SizeMismatch,
			Declared: int64(declared),
			Actual:   int64(len(payload)),
		}
	}
	return payload, kind, nil
}
