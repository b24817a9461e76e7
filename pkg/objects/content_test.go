package objects

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/matzehuels/treepull/pkg/errors"
)

func TestContentFileRoundTrip(t *testing.T) {
	info := &FileInfo{Size: 11, Mode: 0o644, UID: 7, GID: 7}
	body := []byte("hello world")

	var buf bytes.Buffer
	if err := WriteContentFile(&buf, info, bytes.NewReader(body)); err != nil {
		t.Fatal(err)
	}

	gotInfo, r, err := ParseContentFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if gotInfo.Size != info.Size || gotInfo.Mode != info.Mode || gotInfo.UID != 7 {
		t.Errorf("header round trip: %+v", gotInfo)
	}
	gotBody, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotBody, body) {
		t.Errorf("body round trip: %q", gotBody)
	}
}

func TestContentDigestIgnoresCompression(t *testing.T) {
	// The digest covers the canonical stream (header + raw body), so it can
	// be computed without ever producing the compressed form.
	info := &FileInfo{Size: 5, Mode: 0o600}
	d1, err := ContentDigest(info, strings.NewReader("aaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	d2, _ := ContentDigest(info, strings.NewReader("aaaaa"))
	if d1 != d2 {
		t.Error("content digest is not deterministic")
	}
	d3, _ := ContentDigest(info, strings.NewReader("bbbbb"))
	if d1 == d3 {
		t.Error("different bodies produced identical digests")
	}
	d4, _ := ContentDigest(&FileInfo{Size: 5, Mode: 0o755}, strings.NewReader("aaaaa"))
	if d1 == d4 {
		t.Error("different headers produced identical digests")
	}
}

func TestContentHasherMatchesContentDigest(t *testing.T) {
	info := &FileInfo{Size: 3, Mode: 0o644}
	header, err := EncodeFileHeader(info)
	if err != nil {
		t.Fatal(err)
	}
	h := NewContentHasher()
	if err := h.WriteHeader(header); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}

	want, err := ContentDigest(info, strings.NewReader("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if h.Sum() != want {
		t.Error("incremental hash differs from one-shot digest")
	}
}

func TestContentHasherRejectsDoubleHeader(t *testing.T) {
	h := NewContentHasher()
	if err := h.WriteHeader([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := h.WriteHeader([]byte("{}")); err == nil {
		t.Error("second header should fail")
	}
}

func TestParseContentFileCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":          {},
		"short header":   {0x00, 0x00, 0x01, 0x00, 'x'},
		"huge header":    {0xff, 0xff, 0xff, 0xff},
		"bad body":       append([]byte{0x00, 0x00, 0x00, 0x02, '{', '}'}, []byte("notzlib")...),
		"bad header json": append([]byte{0x00, 0x00, 0x00, 0x03}, []byte("abc")...),
	}
	for name, data := range cases {
		if _, _, err := ParseContentFile(bytes.NewReader(data)); err == nil {
			t.Errorf("%s: expected error", name)
		} else if !errors.Is(err, errors.ErrCodeCorrupt) {
			t.Errorf("%s: wrong code %s", name, errors.GetCode(err))
		}
	}
}

func TestSymlinkContent(t *testing.T) {
	info := &FileInfo{Mode: 0o777, Link: "target/path"}
	var buf bytes.Buffer
	if err := WriteContentFile(&buf, info, nil); err != nil {
		t.Fatal(err)
	}
	gotInfo, r, err := ParseContentFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if gotInfo.Link != "target/path" {
		t.Errorf("link lost: %+v", gotInfo)
	}
	body, _ := io.ReadAll(r)
	if len(body) != 0 {
		t.Errorf("symlink body should be empty, got %d bytes", len(body))
	}
}
