package errors

import (
	"strings"
	"testing"
)

func TestValidateChecksumString(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	if err := ValidateChecksumString(valid); err != nil {
		t.Errorf("valid checksum rejected: %v", err)
	}

	invalid := []string{
		"",
		"abc",
		strings.Repeat("ab", 31),
		strings.Repeat("ab", 33),
		strings.Repeat("AB", 32),                // uppercase
		strings.Repeat("a", 63) + "g",           // non-hex
		strings.Repeat("a", 63) + " ", // whitespace
	}
	for _, s := range invalid {
		if err := ValidateChecksumString(s); err == nil {
			t.Errorf("checksum %q should be rejected", s)
		} else if !Is(err, ErrCodeInvalidChecksum) {
			t.Errorf("checksum %q: wrong code %s", s, GetCode(err))
		}
	}
}

func TestValidateFilename(t *testing.T) {
	for _, name := range []string{"hello", "a b", "x.y", "..."} {
		if err := ValidateFilename(name); err != nil {
			t.Errorf("filename %q rejected: %v", name, err)
		}
	}
	for _, name := range []string{"", ".", "..", "a/b", "a\x00b"} {
		if err := ValidateFilename(name); err == nil {
			t.Errorf("filename %q should be rejected", name)
		}
	}
}

func TestValidateRefName(t *testing.T) {
	for _, ref := range []string{"main", "release/v1", "a.b-c_d"} {
		if err := ValidateRefName(ref); err != nil {
			t.Errorf("ref %q rejected: %v", ref, err)
		}
	}
	for _, ref := range []string{"", "/main", "main/", "a//b", "a/../b", "bad\x00"} {
		if err := ValidateRefName(ref); err == nil {
			t.Errorf("ref %q should be rejected", ref)
		}
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://example.com/repo"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, u := range []string{"", "ftp://example.com", "file:///etc"} {
		if err := ValidateURL(u); err == nil {
			t.Errorf("URL %q should be rejected", u)
		}
	}
}
