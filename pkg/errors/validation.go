package errors

import (
	"strings"
)

// ValidateChecksumString validates a lowercase hex SHA-256 checksum string.
// It rejects strings of the wrong length, uppercase hex, and non-hex characters.
func ValidateChecksumString(s string) error {
	if len(s) != 64 {
		return New(ErrCodeInvalidChecksum, "invalid checksum length %d (expected 64): %q", len(s), s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return New(ErrCodeInvalidChecksum, "invalid checksum character %q in %q", c, s)
	}
	return nil
}

// ValidateFilename validates a single path component from a directory tree object.
// It ensures the name cannot escape the directory it is placed in.
//
// The validation rules:
//   - No empty names
//   - No path separators
//   - No null bytes
//   - Not "." or ".."
func ValidateFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidFilename, "filename cannot be empty")
	}
	if name == "." || name == ".." {
		return New(ErrCodeInvalidFilename, "invalid filename %q", name)
	}
	if strings.ContainsAny(name, "/\x00") {
		return New(ErrCodeInvalidFilename, "filename contains invalid characters: %q", name)
	}
	return nil
}

// ValidateRefName validates a branch or ref name.
// Ref names map onto the refs/ directory of a repository, so the same component
// rules as filenames apply to each slash-separated segment.
func ValidateRefName(ref string) error {
	if ref == "" {
		return New(ErrCodeInvalidRef, "ref name cannot be empty")
	}
	if strings.HasPrefix(ref, "/") || strings.HasSuffix(ref, "/") {
		return New(ErrCodeInvalidRef, "ref name cannot start or end with /: %q", ref)
	}
	for _, seg := range strings.Split(ref, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return New(ErrCodeInvalidRef, "invalid ref name segment in %q", ref)
		}
		if strings.ContainsRune(seg, '\x00') {
			return New(ErrCodeInvalidRef, "ref name contains null byte: %q", ref)
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
