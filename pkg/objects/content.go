package objects

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/matzehuels/treepull/pkg/errors"
)

// maxFileHeaderLen bounds the header of a content object. Real headers are a
// few hundred bytes; anything larger indicates corruption.
const maxFileHeaderLen = 1 << 20

// FileInfo is the metadata half of a content object: everything about a file
// except its bytes.
type FileInfo struct {
	Size   int64             `json:"size"`
	Mode   uint32            `json:"mode"`
	UID    uint32            `json:"uid"`
	GID    uint32            `json:"gid"`
	Link   string            `json:"link,omitempty"`
	Xattrs map[string][]byte `json:"xattrs,omitempty"`
}

// EncodeFileHeader renders a content object header to its canonical bytes.
func EncodeFileHeader(info *FileInfo) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(info); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode file header")
	}
	return buf.Bytes(), nil
}

// WriteContentFile writes a content object in its archive (filez) form:
// a big-endian header length, the header bytes, then the zlib-compressed body.
// A nil body writes an empty compressed body.
func WriteContentFile(w io.Writer, info *FileInfo, body io.Reader) error {
	header, err := EncodeFileHeader(info)
	if err != nil {
		return err
	}
	var lenbuf [4]byte
	binary.BigEndian.PutUint32(lenbuf[:], uint32(len(header)))
	if _, err := w.Write(lenbuf[:]); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write content header")
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write content header")
	}
	zw := zlib.NewWriter(w)
	if body != nil {
		if _, err := io.Copy(zw, body); err != nil {
			zw.Close()
			return errors.Wrap(errors.ErrCodeInternal, err, "compress content body")
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "compress content body")
	}
	return nil
}

// ParseContentFile reads a content object in archive form and returns its
// header plus a reader over the decompressed body. The returned reader must
// be closed by the caller; closing it does not close r.
func ParseContentFile(r io.Reader) (*FileInfo, io.ReadCloser, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCorrupt, err, "truncated content object")
	}
	headerLen := binary.BigEndian.Uint32(lenbuf[:])
	if headerLen == 0 || headerLen > maxFileHeaderLen {
		return nil, nil, errors.New(errors.ErrCodeCorrupt, "implausible content header length %d", headerLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCorrupt, err, "truncated content object")
	}
	var info FileInfo
	dec := json.NewDecoder(bytes.NewReader(header))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&info); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed content header")
	}
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed content body")
	}
	return &info, zr, nil
}

// ContentDigest computes the digest of a content object from its header and
// raw (uncompressed) body. The digest covers the canonical content stream:
// header length, header bytes, body bytes. Compression never affects identity.
func ContentDigest(info *FileInfo, body io.Reader) (Digest, error) {
	header, err := EncodeFileHeader(info)
	if err != nil {
		return Digest{}, err
	}
	h := NewContentHasher()
	if err := h.WriteHeader(header); err != nil {
		return Digest{}, err
	}
	if body != nil {
		if _, err := io.Copy(h, body); err != nil {
			return Digest{}, errors.Wrap(errors.ErrCodeInternal, err, "hash content body")
		}
	}
	return h.Sum(), nil
}
