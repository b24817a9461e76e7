package pull

import (
	"strings"
	"testing"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
)

func TestParseRefSummary(t *testing.T) {
	d1 := objects.DigestBytes([]byte("one"))
	d2 := objects.DigestBytes([]byte("two"))
	contents := d1.Hex() + " main\n" + d2.Hex() + " release/v1\n\n"

	refs, err := parseRefSummary(contents)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("refs = %+v", refs)
	}
	if refs[0].Name != "main" || refs[0].Target != d1 {
		t.Errorf("refs[0] = %+v", refs[0])
	}
	if refs[1].Name != "release/v1" || refs[1].Target != d2 {
		t.Errorf("refs[1] = %+v", refs[1])
	}
}

func TestParseRefSummaryEmpty(t *testing.T) {
	refs, err := parseRefSummary("")
	if err != nil || len(refs) != 0 {
		t.Errorf("empty summary: %v %v", refs, err)
	}
}

func TestParseRefSummaryMissingSpace(t *testing.T) {
	_, err := parseRefSummary(strings.Repeat("a", 64) + "\n")
	if !errors.Is(err, errors.ErrCodeCorrupt) {
		t.Errorf("want CORRUPT, got %v", err)
	}
}

func TestParseRefSummaryBadDigest(t *testing.T) {
	_, err := parseRefSummary("nothex main\n")
	if !errors.Is(err, errors.ErrCodeCorrupt) {
		t.Errorf("want CORRUPT, got %v", err)
	}
}

func TestParseRefSummaryBadRefName(t *testing.T) {
	d := objects.DigestBytes([]byte("x"))
	_, err := parseRefSummary(d.Hex() + " ../escape\n")
	if !errors.Is(err, errors.ErrCodeCorrupt) {
		t.Errorf("want CORRUPT, got %v", err)
	}
}

func TestParseRefSummaryLaterLineWins(t *testing.T) {
	d1 := objects.DigestBytes([]byte("one"))
	d2 := objects.DigestBytes([]byte("two"))
	refs, err := parseRefSummary(d1.Hex() + " main\n" + d2.Hex() + " main\n")
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].Target != d2 {
		t.Errorf("refs = %+v", refs)
	}
}
