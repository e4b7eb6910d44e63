// Package opaque renders internal database identifiers as reversibly
// encrypted opaque strings so sequential keys never reach clients in
// clear form. Encoding is deterministic and keyed by a secret; the
// rendered form has a fixed length regardless of identifier magnitude.
package opaque

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrBadIdentifier marks a string that is not a valid encoding of any
// internal identifier.
var ErrBadIdentifier = errors.New("malformed opaque identifier")

// idOffset is the number of leading zero bytes inside the cipher block.
// The zero prefix doubles as a cheap forgery check on decode.
const idOffset = aes.BlockSize - 8

type Codec struct {
	block     cipher.Block
	relations map[string]struct{}
}

// NewCodec builds a codec from a secret and the allow-list of relation
// keys whose values may carry nested identifiers. Secrets of any length
// are accepted; the cipher key is derived via SHA-256.
func NewCodec(secret string, relations []string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("opaque: secret is required")
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("opaque: %w", err)
	}
	rel := make(map[string]struct{}, len(relations))
	for _, name := range relations {
		rel[name] = struct{}{}
	}
	return &Codec{block: block, relations: rel}, nil
}

// EncodeID encrypts an internal identifier into a 32-character hex
// string. decode(encode(x)) == x for every valid identifier.
func (c *Codec) EncodeID(id int64) string {
	var plain, enc [aes.BlockSize]byte
	binary.BigEndian.PutUint64(plain[idOffset:], uint64(id))
	c.block.Encrypt(enc[:], plain[:])
	return hex.EncodeToString(enc[:])
}

// DecodeID reverses EncodeID. A decoded identifier is untrusted: a
// forged input can survive the zero-prefix check, so callers must
// confirm existence against the store before acting on it.
func (c *Codec) DecodeID(s string) (int64, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != aes.BlockSize {
		return 0, ErrBadIdentifier
	}
	var plain [aes.BlockSize]byte
	c.block.Decrypt(plain[:], raw)
	for _, b := range plain[:idOffset] {
		if b != 0 {
			return 0, ErrBadIdentifier
		}
	}
	return int64(binary.BigEndian.Uint64(plain[idOffset:])), nil
}
