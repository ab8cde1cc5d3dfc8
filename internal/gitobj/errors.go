package gitobj

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a decode failure.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota

	// framing
	MissingNullTerminator
	MalformedHeader
	SizeMismatch
	MissingEntryMode
	MissingEntryName
	TruncatedEntryHash
	UnexpectedEndOfHeader
	MalformedHeaderLine
	MissingEmailOpenBracket
	MissingEmailCloseBracket
	MalformedDateField
	MalformedUserInfo

	// type
	UnknownObjectType
	UnsupportedObjectKind

	// encoding
	InvalidSizeField
	NonUTF8EntryField
	NonUTF8Field
	InvalidHexDigest

	// semantic
	InvalidDigestLength
	DuplicateTreeField
	DuplicateField
	UnrecognizedHeaderField
	MissingRequiredField
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "unknown",
	MissingNullTerminator:    "missing null terminator",
	MalformedHeader:          "malformed header",
	SizeMismatch:             "size mismatch",
	MissingEntryMode:         "missing tree entry mode",
	MissingEntryName:         "missing tree entry name",
	TruncatedEntryHash:       "truncated tree entry hash",
	UnexpectedEndOfHeader:    "unexpected end of commit header",
	MalformedHeaderLine:      "malformed commit header line",
	MissingEmailOpenBracket:  "missing '<' in user info",
	MissingEmailCloseBracket: "missing '>' in user info",
	MalformedDateField:       "malformed user info date",
	MalformedUserInfo:        "malformed user info",
	UnknownObjectType:        "unknown object type",
	UnsupportedObjectKind:    "unsupported object kind",
	InvalidSizeField:         "invalid size field",
	NonUTF8EntryField:        "non utf-8 tree entry field",
	NonUTF8Field:             "non utf-8 field",
	InvalidHexDigest:         "invalid hex digest",
	InvalidDigestLength:      "invalid digest length",
	DuplicateTreeField:       "duplicate tree field",
	DuplicateField:           "duplicate field",
	UnrecognizedHeaderField:  "unrecognized commit header field",
	MissingRequiredField:     "missing required field",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned by every parser in this package. Only the fields that
// make sense for Kind are populated.
type Error struct {
	Kind ErrorKind
	// Field names the tree entry field, commit header field or user info
	// component involved.
	Field string
	// Token holds the offending bytes, e.g. an unknown object type.
	Token []byte
	// Declared and Actual are set for SizeMismatch and InvalidDigestLength.
	Declared int64
	Actual   int64
	// Remaining is the number of unconsumed payload bytes at the failure.
	Remaining int
	Err       error
}

func (e *Error) Error() string {
	msg := "gitobj: " + e.Kind.String()
	switch e.Kind {
	case SizeMismatch:
		msg += fmt.Sprintf(": %d bytes declared, %d bytes present", e.Declared, e.Actual)
	case InvalidDigestLength:
		msg += fmt.Sprintf(": want %d bytes, got %d", e.Declared, e.Actual)
	case TruncatedEntryHash:
		msg += fmt.Sprintf(": %d of %d bytes left", e.Remaining, DigestSize)
	case UnknownObjectType, UnsupportedObjectKind, UnrecognizedHeaderField, InvalidSizeField, MalformedHeaderLine:
		msg += fmt.Sprintf(": %q", e.Token)
	default:
		if e.Field != "" {
			msg += fmt.Sprintf(" %q", e.Field)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, &gitobj.Error{Kind: gitobj.SizeMismatch}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the ErrorKind carried by err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind ErrorKind, field string) *Error {
	return &Error{Kind: kind, Field: field}
}
