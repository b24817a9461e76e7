package objects

import (
	"bytes"
	"encoding/json"

	"github.com/matzehuels/treepull/pkg/errors"
)

// RelatedCommit links a named related branch to its commit digest.
// Related commits are pulled only when the pull is configured to follow them.
type RelatedCommit struct {
	Name   string `json:"name"`
	Commit string `json:"commit"`
}

// Commit is the root snapshot record of a tree. Its digest is computed over
// the canonical encoded bytes, so field order and encoding are fixed.
type Commit struct {
	Parent    string          `json:"parent,omitempty"`
	Related   []RelatedCommit `json:"related,omitempty"`
	Subject   string          `json:"subject"`
	Body      string          `json:"body,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Tree      string          `json:"tree"`
	Meta      string          `json:"meta"`
}

// TreeDigest returns the commit's root dirtree digest.
func (c *Commit) TreeDigest() (Digest, error) {
	return DigestFromHex(c.Tree)
}

// MetaDigest returns the commit's root dirmeta digest.
func (c *Commit) MetaDigest() (Digest, error) {
	return DigestFromHex(c.Meta)
}

// FileEntry is one regular file in a directory tree.
type FileEntry struct {
	Name   string `json:"name"`
	Digest string `json:"digest"`
}

// DirEntry is one subdirectory in a directory tree, referencing the subtree
// listing and its metadata object.
type DirEntry struct {
	Name string `json:"name"`
	Tree string `json:"tree"`
	Meta string `json:"meta"`
}

// DirTree is a directory listing: files by name and subdirectories by name.
// Entry order is preserved as encoded.
type DirTree struct {
	Files []FileEntry `json:"files"`
	Dirs  []DirEntry  `json:"dirs"`
}

// DirMeta carries directory permissions and ownership. It is a leaf object.
type DirMeta struct {
	Mode   uint32            `json:"mode"`
	UID    uint32            `json:"uid"`
	GID    uint32            `json:"gid"`
	Xattrs map[string][]byte `json:"xattrs,omitempty"`
}

// EncodeMetadata renders a metadata payload (Commit, DirTree or DirMeta) to
// its canonical bytes. The digest of a metadata object is the SHA-256 of
// exactly these bytes.
func EncodeMetadata(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode metadata")
	}
	return buf.Bytes(), nil
}

// ParseCommit parses canonical commit bytes.
func ParseCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := decodeStrict(data, &c); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed commit object")
	}
	if err := errors.ValidateChecksumString(c.Tree); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed commit object")
	}
	if err := errors.ValidateChecksumString(c.Meta); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed commit object")
	}
	for _, rel := range c.Related {
		if err := errors.ValidateChecksumString(rel.Commit); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed related entry %q", rel.Name)
		}
	}
	return &c, nil
}

// ParseDirTree parses canonical dirtree bytes. Filenames are NOT validated
// here; the scanner validates them entry by entry so a single bad name is
// reported with its context.
func ParseDirTree(data []byte) (*DirTree, error) {
	var t DirTree
	if err := decodeStrict(data, &t); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed dirtree object")
	}
	for _, f := range t.Files {
		if err := errors.ValidateChecksumString(f.Digest); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed dirtree file entry %q", f.Name)
		}
	}
	for _, d := range t.Dirs {
		if err := errors.ValidateChecksumString(d.Tree); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed dirtree dir entry %q", d.Name)
		}
		if err := errors.ValidateChecksumString(d.Meta); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed dirtree dir entry %q", d.Name)
		}
	}
	return &t, nil
}

// ParseDirMeta parses canonical dirmeta bytes.
func ParseDirMeta(data []byte) (*DirMeta, error) {
	var m DirMeta
	if err := decodeStrict(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed dirmeta object")
	}
	return &m, nil
}

// ParseMetadata parses metadata bytes as the payload implied by t and returns
// the typed payload. Used by the fetch path, which knows the expected type
// from the object name it requested.
func ParseMetadata(t Type, data []byte) (any, error) {
	switch t {
	case TypeCommit:
		return ParseCommit(data)
	case TypeDirTree:
		return ParseDirTree(data)
	case TypeDirMeta:
		return ParseDirMeta(data)
	default:
		return nil, errors.New(errors.ErrCodeInternal, "type %s is not a metadata type", t)
	}
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
