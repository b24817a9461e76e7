package objects

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"

	"github.com/matzehuels/treepull/pkg/errors"
)

// ContentHasher incrementally computes the digest of a content object's
// canonical stream. Write the header once via WriteHeader, then stream the
// raw body through Write.
type ContentHasher struct {
	h         hash.Hash
	hasHeader bool
}

// NewContentHasher returns a hasher positioned before the header.
func NewContentHasher() *ContentHasher {
	return &ContentHasher{h: sha256.New()}
}

// WriteHeader feeds the canonical header bytes, prefixed with their length.
func (c *ContentHasher) WriteHeader(header []byte) error {
	if c.hasHeader {
		return errors.New(errors.ErrCodeInternal, "content header hashed twice")
	}
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(header)))
	c.h.Write(lenbuf[:])
	c.h.Write(header)
	c.hasHeader = true
	return nil
}

// Write feeds raw body bytes. Implements io.Writer.
func (c *ContentHasher) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

// Sum returns the digest of everything written so far.
func (c *ContentHasher) Sum() Digest {
	var d Digest
	copy(d[:], c.h.Sum(nil))
	return d
}
