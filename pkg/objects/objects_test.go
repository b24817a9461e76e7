package objects

import (
	"strings"
	"testing"

	"github.com/matzehuels/treepull/pkg/errors"
)

func TestDigestHexRoundTrip(t *testing.T) {
	d := DigestBytes([]byte("hello"))
	hexd := d.Hex()
	if len(hexd) != 64 {
		t.Fatalf("hex length = %d", len(hexd))
	}
	if hexd != strings.ToLower(hexd) {
		t.Error("hex encoding must be lowercase")
	}

	parsed, err := DigestFromHex(hexd)
	if err != nil {
		t.Fatalf("DigestFromHex: %v", err)
	}
	if parsed != d {
		t.Error("round trip changed the digest")
	}
}

func TestDigestFromHexRejectsBadInput(t *testing.T) {
	cases := []string{
		"",
		"abcd",
		strings.ToUpper(strings.Repeat("ab", 32)),
		strings.Repeat("zz", 32),
	}
	for _, s := range cases {
		if _, err := DigestFromHex(s); err == nil {
			t.Errorf("DigestFromHex(%q) should fail", s)
		} else if !errors.Is(err, errors.ErrCodeInvalidChecksum) {
			t.Errorf("DigestFromHex(%q): wrong code %s", s, errors.GetCode(err))
		}
	}
}

func TestTypeProperties(t *testing.T) {
	metaTypes := []Type{TypeCommit, TypeDirTree, TypeDirMeta}
	for _, typ := range metaTypes {
		if !typ.IsMeta() {
			t.Errorf("%s should be metadata", typ)
		}
	}
	if TypeFile.IsMeta() {
		t.Error("filez is content, not metadata")
	}

	for _, typ := range []Type{TypeCommit, TypeDirTree, TypeDirMeta, TypeFile} {
		back, err := TypeFromExtension(typ.String())
		if err != nil {
			t.Fatalf("TypeFromExtension(%s): %v", typ, err)
		}
		if back != typ {
			t.Errorf("extension round trip: %s != %s", back, typ)
		}
	}
	if _, err := TypeFromExtension("tarball"); err == nil {
		t.Error("unknown extension should fail")
	}
}

func TestNameEquality(t *testing.T) {
	d1 := DigestBytes([]byte("a"))
	d2 := DigestBytes([]byte("b"))

	if NewName(d1, TypeCommit) != NewName(d1, TypeCommit) {
		t.Error("identical names must compare equal")
	}
	if NewName(d1, TypeCommit) == NewName(d1, TypeDirTree) {
		t.Error("same digest, different type must differ")
	}
	if NewName(d1, TypeCommit) == NewName(d2, TypeCommit) {
		t.Error("different digests must differ")
	}
}

func TestRelativePath(t *testing.T) {
	d, err := DigestFromHex("aa" + strings.Repeat("b", 62))
	if err != nil {
		t.Fatal(err)
	}
	got := NewName(d, TypeCommit).RelativePath()
	want := "objects/aa/" + strings.Repeat("b", 62) + ".commit"
	if got != want {
		t.Errorf("RelativePath = %s, want %s", got, want)
	}

	got = NewName(d, TypeFile).RelativePath()
	if !strings.HasSuffix(got, ".filez") {
		t.Errorf("content path should use .filez: %s", got)
	}
}
