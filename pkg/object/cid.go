package object

import (
	"encoding/hex"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// CID returns h as a CIDv1 with the raw codec and a sha2-256 multihash, so
// objects can be addressed from CID-based stores. The digest covers the
// object envelope, exactly as the native id does.
func (h Hash) CID() (gocid.Cid, error) {
	digest, err := hex.DecodeString(string(h))
	if err != nil {
		return gocid.Undef, fmt.Errorf("cid %s: %w", h, err)
	}
	mh, err := multihash.Encode(digest, multihash.SHA2_256)
	if err != nil {
		return gocid.Undef, fmt.Errorf("cid %s: multihash: %w", h, err)
	}
	return gocid.NewCidV1(gocid.Raw, mh), nil
}

// Multibase returns the base32lower text form of h's CID.
func (h Hash) Multibase() (string, error) {
	c, err := h.CID()
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base32, c.Bytes())
}

// HashFromCID converts a sha2-256 CID back into a native id.
func HashFromCID(c gocid.Cid) (Hash, error) {
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return "", fmt.Errorf("cid %s: %w", c, err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return "", fmt.Errorf("cid %s: unsupported multihash %s", c, decoded.Name)
	}
	return Hash(hex.EncodeToString(decoded.Digest)), nil
}
