package repo

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/matzehuels/treepull/pkg/errors"
)

// RepoMode identifies the on-disk layout of a repository.
type RepoMode string

// Repository modes. ArchiveZ2 stores content objects compressed under
// objects/ and is the only mode remotes may expose.
const (
	ModeBare      RepoMode = "bare"
	ModeArchiveZ2 RepoMode = "archive-z2"
)

// ModeFromString parses a repository mode string.
func ModeFromString(s string) (RepoMode, error) {
	switch s {
	case string(ModeBare):
		return ModeBare, nil
	case string(ModeArchiveZ2):
		return ModeArchiveZ2, nil
	default:
		return "", errors.New(errors.ErrCodeCorrupt, "invalid repository mode %q", s)
	}
}

// remoteSection returns the config section name for a remote, matching the
// git-style keyfile convention: remote "origin".
func remoteSection(name string) string {
	return fmt.Sprintf("remote %q", name)
}

// ParseKeyFile parses git-style keyfile contents ([core], [remote "name"]).
func ParseKeyFile(data []byte) (*ini.File, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{}, data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "malformed keyfile")
	}
	return cfg, nil
}

// KeyFileMode extracts core.mode from a parsed keyfile, defaulting to bare
// when the key is absent.
func KeyFileMode(cfg *ini.File) (RepoMode, error) {
	sec := cfg.Section("core")
	if !sec.HasKey("mode") {
		return ModeBare, nil
	}
	return ModeFromString(sec.Key("mode").String())
}

// StringKeyInherit looks up section.key in the repository config, falling
// back to the parent repository chain when the key is absent.
func (r *Repository) StringKeyInherit(section, key string) (string, bool, error) {
	sec := r.config.Section(section)
	if sec.HasKey(key) {
		return sec.Key(key).String(), true, nil
	}
	parent, err := r.Parent()
	if err != nil {
		return "", false, err
	}
	if parent == nil {
		return "", false, nil
	}
	return parent.StringKeyInherit(section, key)
}

// RemoteURL resolves the base URL of a configured remote, consulting parent
// repositories when the local config does not carry it.
func (r *Repository) RemoteURL(name string) (string, error) {
	url, ok, err := r.StringKeyInherit(remoteSection(name), "url")
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "remote %q has no configured url", name)
	}
	if err := errors.ValidateURL(url); err != nil {
		return "", err
	}
	return url, nil
}

// RemoteBranches returns the space-separated branches list configured for a
// remote. ok is false when no branches key exists at all, which callers use
// to fall back to the remote's ref summary.
func (r *Repository) RemoteBranches(name string) ([]string, bool, error) {
	raw, ok, err := r.StringKeyInherit(remoteSection(name), "branches")
	if err != nil || !ok {
		return nil, false, err
	}
	return strings.Fields(raw), true, nil
}

// AddRemote records a remote in the repository config. An existing remote
// with the same name is overwritten.
func (r *Repository) AddRemote(name, url string, branches []string) error {
	if err := errors.ValidateURL(url); err != nil {
		return err
	}
	sec := r.config.Section(remoteSection(name))
	sec.Key("url").SetValue(url)
	if len(branches) > 0 {
		sec.Key("branches").SetValue(strings.Join(branches, " "))
	} else {
		sec.DeleteKey("branches")
	}
	return r.saveConfig()
}
