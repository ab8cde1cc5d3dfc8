package gitobj

import (
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DigestSize is the length of a SHA-1 object id.
const DigestSize = 20

// Codec is the multicodec of every identifier produced here (git-raw, 0x78).
const Codec = gocid.GitRaw

// DigestToCID wraps a raw 20-byte SHA-1 object id in a CIDv1 with the
// git-raw codec. The encoded CID is
//
//	0x01 0x78 0x11 0x14 <digest>
func DigestToCID(digest []byte) (gocid.Cid, error) {
	if len(digest) != DigestSize {
		return gocid.Undef, &Error{
			Kind:     InvalidDigestLength,
			Declared: DigestSize,
			Actual:   int64(len(digest)),
		}
	}
	mh, err := multihash.Encode(digest, multihash.SHA1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(Codec, mh), nil
}

// Sum computes the identifier of a complete framed object, the same SHA-1
// git itself would assign to it.
func Sum(raw []byte) (gocid.Cid, error) {
	mh, err := multihash.Sum(raw, multihash.SHA1, -1)
	if err != nil {
		return gocid.Undef, fmt.Errorf("multihash: %w", err)
	}
	return gocid.NewCidV1(Codec, mh), nil
}

// Digest returns the raw SHA-1 inside c. It fails for identifiers not built
// by DigestToCID or Sum.
func Digest(c gocid.Cid) ([]byte, error) {
	if c.Type() != Codec {
		return nil, fmt.Errorf("cid %s: codec 0x%x is not git-raw", c, c.Type())
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return nil, fmt.Errorf("cid %s: %w", c, err)
	}
	if decoded.Code != multihash.SHA1 || len(decoded.Digest) != DigestSize {
		return nil, fmt.Errorf("cid %s: not a sha1 multihash", c)
	}
	return decoded.Digest, nil
}

// HexToCID converts a 40-character hex object id, as printed by git, to
// its identifier.
func HexToCID(id string) (gocid.Cid, error) {
	return hexToCID("id", []byte(id))
}
