package objects

import (
	"testing"

	"github.com/matzehuels/treepull/pkg/errors"
)

func testDigestHex(seed string) string {
	return DigestBytes([]byte(seed)).Hex()
}

func TestCommitRoundTrip(t *testing.T) {
	commit := &Commit{
		Subject:   "snapshot",
		Body:      "imported tree",
		Timestamp: 1700000000,
		Tree:      testDigestHex("tree"),
		Meta:      testDigestHex("meta"),
		Related:   []RelatedCommit{{Name: "history", Commit: testDigestHex("old")}},
	}
	raw, err := EncodeMetadata(commit)
	if err != nil {
		t.Fatal(err)
	}

	// Encoding is canonical: same value, same bytes, same digest.
	raw2, _ := EncodeMetadata(commit)
	if DigestBytes(raw) != DigestBytes(raw2) {
		t.Error("metadata encoding is not deterministic")
	}

	parsed, err := ParseCommit(raw)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Subject != commit.Subject || parsed.Tree != commit.Tree {
		t.Error("commit round trip lost fields")
	}
	if len(parsed.Related) != 1 || parsed.Related[0].Name != "history" {
		t.Error("related entries lost")
	}
}

func TestParseCommitRejectsBadDigests(t *testing.T) {
	raw, _ := EncodeMetadata(&Commit{Subject: "x", Tree: "nothex", Meta: testDigestHex("m")})
	if _, err := ParseCommit(raw); err == nil {
		t.Fatal("commit with invalid tree digest should fail")
	} else if !errors.Is(err, errors.ErrCodeCorrupt) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}
}

func TestParseCommitRejectsGarbage(t *testing.T) {
	if _, err := ParseCommit([]byte("not json at all")); err == nil {
		t.Fatal("garbage should fail")
	} else if !errors.Is(err, errors.ErrCodeCorrupt) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}
}

func TestDirTreeRoundTrip(t *testing.T) {
	tree := &DirTree{
		Files: []FileEntry{
			{Name: "hello", Digest: testDigestHex("hello")},
			{Name: "world", Digest: testDigestHex("world")},
		},
		Dirs: []DirEntry{
			{Name: "sub", Tree: testDigestHex("subtree"), Meta: testDigestHex("submeta")},
		},
	}
	raw, err := EncodeMetadata(tree)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseDirTree(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed.Files) != 2 || len(parsed.Dirs) != 1 {
		t.Fatalf("round trip lost entries: %+v", parsed)
	}
	if parsed.Files[0].Name != "hello" || parsed.Files[1].Name != "world" {
		t.Error("entry order not preserved")
	}
}

func TestParseDirTreeRejectsBadDigest(t *testing.T) {
	raw, _ := EncodeMetadata(&DirTree{Files: []FileEntry{{Name: "f", Digest: "xyz"}}})
	if _, err := ParseDirTree(raw); err == nil {
		t.Fatal("dirtree with bad digest should fail")
	}
}

func TestParseMetadataDispatch(t *testing.T) {
	rawMeta, _ := EncodeMetadata(&DirMeta{Mode: 0o755})
	v, err := ParseMetadata(TypeDirMeta, rawMeta)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := v.(*DirMeta); !ok {
		t.Errorf("ParseMetadata returned %T", v)
	}

	if _, err := ParseMetadata(TypeFile, nil); err == nil {
		t.Fatal("content type should be rejected")
	} else if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}
}

func TestMetadataDigestStability(t *testing.T) {
	raw, _ := EncodeMetadata(&DirMeta{Mode: 0o700, UID: 1, GID: 2})
	d := DigestBytes(raw)
	// A one-byte change must change the digest.
	mutated := append([]byte{}, raw...)
	mutated[0] ^= 0xff
	if DigestBytes(mutated) == d {
		t.Error("mutated bytes produced identical digest")
	}
}
