// Package objects defines the content-addressed object model shared by the
// repository store, the pull engine, and the wire layer.
//
// Every object is identified by the SHA-256 digest of its canonical bytes.
// The digest doubles as the integrity proof: an object fetched from a remote
// is stored under its recomputed digest, and the pull engine aborts when that
// digest differs from the one the object was requested under.
//
// # Object Types
//
// Four object types exist. Commit, DirTree and DirMeta are metadata objects
// and are parsed by the pull engine to discover further objects; File is the
// only content type and is an opaque leaf.
package objects

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/matzehuels/treepull/pkg/errors"
)

// DigestLen is the size in bytes of a raw object digest.
const DigestLen = sha256.Size

// Digest is the raw SHA-256 digest of an object's canonical bytes.
// The zero value is not a valid digest of any object.
type Digest [DigestLen]byte

// DigestBytes computes the digest of data.
func DigestBytes(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// DigestFromHex parses a lowercase hex checksum string into a Digest.
// Non-hex characters, uppercase hex, and wrong-length strings are rejected.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	if err := errors.ValidateChecksumString(s); err != nil {
		return d, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, errors.Wrap(errors.ErrCodeInvalidChecksum, err, "invalid checksum %q", s)
	}
	copy(d[:], raw)
	return d, nil
}

// Hex returns the canonical lowercase hex encoding of the digest.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string { return d.Hex() }

// IsZero reports whether the digest is the all-zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Type identifies the kind of an object.
type Type int

// Object types. The numeric values are stable and appear in debug output only;
// the wire and on-disk representation is the file extension.
const (
	TypeFile Type = iota + 1
	TypeDirTree
	TypeDirMeta
	TypeCommit
)

// String returns the type's canonical name, which is also its object file
// extension.
func (t Type) String() string {
	switch t {
	case TypeFile:
		return "filez"
	case TypeDirTree:
		return "dirtree"
	case TypeDirMeta:
		return "dirmeta"
	case TypeCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// IsMeta reports whether t is a metadata type (anything but File).
func (t Type) IsMeta() bool {
	return t == TypeCommit || t == TypeDirTree || t == TypeDirMeta
}

// TypeFromExtension maps an object file extension back to its type.
func TypeFromExtension(ext string) (Type, error) {
	switch ext {
	case "filez":
		return TypeFile, nil
	case "dirtree":
		return TypeDirTree, nil
	case "dirmeta":
		return TypeDirMeta, nil
	case "commit":
		return TypeCommit, nil
	default:
		return 0, errors.New(errors.ErrCodeCorrupt, "unknown object extension %q", ext)
	}
}

// Name identifies one object: a digest paired with a type. Two names are
// equal iff both components are; Name is comparable and is used as the key
// of the pull engine's dedup sets.
type Name struct {
	Digest Digest
	Type   Type
}

// NewName builds an object name.
func NewName(d Digest, t Type) Name {
	return Name{Digest: d, Type: t}
}

// String renders "digest.type", matching the object's on-disk filename minus
// the fan-out directory.
func (n Name) String() string {
	return n.Digest.Hex() + "." + n.Type.String()
}

// RelativePath returns the canonical repository-relative (and wire-relative)
// path of the object: the first two hex characters as a fan-out directory,
// then the remaining characters plus the type extension.
func (n Name) RelativePath() string {
	hexd := n.Digest.Hex()
	return "objects/" + hexd[:2] + "/" + hexd[2:] + "." + n.Type.String()
}
