// Package repo implements the local content-addressed object store.
//
// A repository is a directory with a git-style keyfile config, a fan-out
// objects/ directory keyed by digest, and refs under refs/heads (local
// branches) and refs/remotes/<remote>/<ref> (last-pulled remote positions).
// All objects are immutable once written; a staged object is always stored
// under its recomputed digest, never under a digest a caller claims for it.
//
// Layout:
//
//	config
//	objects/<ab>/<rest>.<ext>
//	refs/heads/<name>
//	refs/remotes/<remote>/<name>
//	tmp/
package repo

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
)

// Repository is a handle to an on-disk object store. It is safe for
// concurrent readers; ref and config writes are not synchronized and belong
// to a single owner (the pull coordinator or the CLI).
type Repository struct {
	path   string
	config *ini.File

	parent       *Repository
	parentLoaded bool
}

// Init creates a new archive-z2 repository at path. The directory may exist
// but must not already contain a repository.
func Init(path string) (*Repository, error) {
	if _, err := os.Stat(filepath.Join(path, "config")); err == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "repository already exists at %s", path)
	}
	for _, dir := range []string{"objects", "refs/heads", "refs/remotes", "tmp"} {
		if err := os.MkdirAll(filepath.Join(path, dir), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "create repository at %s", path)
		}
	}
	cfg := ini.Empty()
	core := cfg.Section("core")
	core.Key("repo_version").SetValue("1")
	core.Key("mode").SetValue(string(ModeArchiveZ2))
	if err := cfg.SaveTo(filepath.Join(path, "config")); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write repository config")
	}
	return Open(path)
}

// Open opens an existing repository.
func Open(path string) (*Repository, error) {
	cfgPath := filepath.Join(path, "config")
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "no repository at %s", path)
	}
	cfg, err := ParseKeyFile(data)
	if err != nil {
		return nil, err
	}
	mode, err := KeyFileMode(cfg)
	if err != nil {
		return nil, err
	}
	if mode != ModeArchiveZ2 {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported local repository mode %q", mode)
	}
	return &Repository{path: path, config: cfg}, nil
}

// Path returns the repository root directory.
func (r *Repository) Path() string { return r.path }

// TmpDir returns the repository scratch directory used for in-flight
// downloads and staging.
func (r *Repository) TmpDir() string { return filepath.Join(r.path, "tmp") }

// Config exposes the parsed repository keyfile.
func (r *Repository) Config() *ini.File { return r.config }

// ConfigBytes renders the repository keyfile, as served at /config.
func (r *Repository) ConfigBytes() ([]byte, error) {
	var sb strings.Builder
	if _, err := r.config.WriteTo(&sb); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render repository config")
	}
	return []byte(sb.String()), nil
}

func (r *Repository) saveConfig() error {
	if err := r.config.SaveTo(filepath.Join(r.path, "config")); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write repository config")
	}
	return nil
}

// Parent returns the parent repository configured via core.parent, or nil.
// The parent is opened lazily and cached for the lifetime of the handle.
func (r *Repository) Parent() (*Repository, error) {
	if r.parentLoaded {
		return r.parent, nil
	}
	r.parentLoaded = true
	sec := r.config.Section("core")
	if !sec.HasKey("parent") {
		return nil, nil
	}
	parent, err := Open(sec.Key("parent").String())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "open parent repository")
	}
	r.parent = parent
	return r.parent, nil
}

// objectPath returns the absolute path of an object file.
func (r *Repository) objectPath(name objects.Name) string {
	return filepath.Join(r.path, filepath.FromSlash(name.RelativePath()))
}

// HasObject reports whether the store contains the named object.
func (r *Repository) HasObject(name objects.Name) (bool, error) {
	_, err := os.Stat(r.objectPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(errors.ErrCodeInternal, err, "stat object %s", name)
}

// ReadMetadata returns the raw canonical bytes of a stored metadata object.
func (r *Repository) ReadMetadata(name objects.Name) ([]byte, error) {
	if !name.Type.IsMeta() {
		return nil, errors.New(errors.ErrCodeInternal, "%s is not a metadata object", name)
	}
	data, err := os.ReadFile(r.objectPath(name))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCorrupt, err, "missing metadata object %s", name)
	}
	return data, nil
}

// LoadCommit loads and parses a stored commit.
func (r *Repository) LoadCommit(d objects.Digest) (*objects.Commit, error) {
	data, err := r.ReadMetadata(objects.NewName(d, objects.TypeCommit))
	if err != nil {
		return nil, err
	}
	return objects.ParseCommit(data)
}

// LoadDirTree loads and parses a stored directory tree.
func (r *Repository) LoadDirTree(d objects.Digest) (*objects.DirTree, error) {
	data, err := r.ReadMetadata(objects.NewName(d, objects.TypeDirTree))
	if err != nil {
		return nil, err
	}
	return objects.ParseDirTree(data)
}

// LoadDirMeta loads and parses a stored directory metadata object.
func (r *Repository) LoadDirMeta(d objects.Digest) (*objects.DirMeta, error) {
	data, err := r.ReadMetadata(objects.NewName(d, objects.TypeDirMeta))
	if err != nil {
		return nil, err
	}
	return objects.ParseDirMeta(data)
}

// OpenContent opens a stored content object, returning its file metadata and
// a reader over the decompressed body. The caller closes both.
func (r *Repository) OpenContent(d objects.Digest) (*objects.FileInfo, io.ReadCloser, error) {
	f, err := os.Open(r.objectPath(objects.NewName(d, objects.TypeFile)))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeCorrupt, err, "missing content object %s", d)
	}
	info, body, err := objects.ParseContentFile(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return info, &contentReader{body: body, file: f}, nil
}

type contentReader struct {
	body io.ReadCloser
	file *os.File
}

func (c *contentReader) Read(p []byte) (int, error) { return c.body.Read(p) }

func (c *contentReader) Close() error {
	err := c.body.Close()
	if cerr := c.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenObject opens the raw stored form of an object (canonical bytes for
// metadata, the archive form for content). Used to serve objects over the
// wire, where the stored form and the wire form coincide.
func (r *Repository) OpenObject(name objects.Name) (io.ReadCloser, error) {
	f, err := os.Open(r.objectPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeNotFound, "no such object %s", name)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open object %s", name)
	}
	return f, nil
}

// refPath maps a (remote, ref) pair to its file. An empty remote addresses a
// local branch head.
func (r *Repository) refPath(remote, ref string) string {
	if remote == "" {
		return filepath.Join(r.path, "refs", "heads", filepath.FromSlash(ref))
	}
	return filepath.Join(r.path, "refs", "remotes", remote, filepath.FromSlash(ref))
}

// WriteRef points a ref at a commit digest. With an empty remote the ref is
// a local branch head; otherwise it records the last-pulled position of a
// remote ref.
func (r *Repository) WriteRef(remote, ref string, d objects.Digest) error {
	if err := errors.ValidateRefName(ref); err != nil {
		return err
	}
	path := r.refPath(remote, ref)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write ref %s", ref)
	}
	if err := os.WriteFile(path, []byte(d.Hex()+"\n"), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write ref %s", ref)
	}
	return nil
}

// ResolveRev resolves a rev to a commit digest. A rev is either a full hex
// digest, a local branch name, or "remote/ref". With allowMissing, an
// unknown rev yields ok=false instead of an error.
func (r *Repository) ResolveRev(rev string, allowMissing bool) (objects.Digest, bool, error) {
	if errors.ValidateChecksumString(rev) == nil {
		d, err := objects.DigestFromHex(rev)
		return d, err == nil, err
	}

	candidates := []string{
		filepath.Join(r.path, "refs", "heads", filepath.FromSlash(rev)),
		filepath.Join(r.path, "refs", "remotes", filepath.FromSlash(rev)),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return objects.Digest{}, false, errors.Wrap(errors.ErrCodeInternal, err, "read ref %s", rev)
		}
		d, err := objects.DigestFromHex(strings.TrimSpace(string(data)))
		if err != nil {
			return objects.Digest{}, false, errors.Wrap(errors.ErrCodeCorrupt, err, "ref %s", rev)
		}
		return d, true, nil
	}
	if allowMissing {
		return objects.Digest{}, false, nil
	}
	return objects.Digest{}, false, errors.New(errors.ErrCodeNotFound, "rev %q not found", rev)
}

// ResolveHead resolves a local branch head only, never a remote ref.
func (r *Repository) ResolveHead(ref string) (objects.Digest, bool, error) {
	data, err := os.ReadFile(filepath.Join(r.path, "refs", "heads", filepath.FromSlash(ref)))
	if os.IsNotExist(err) {
		return objects.Digest{}, false, nil
	}
	if err != nil {
		return objects.Digest{}, false, errors.Wrap(errors.ErrCodeInternal, err, "read ref %s", ref)
	}
	d, err := objects.DigestFromHex(strings.TrimSpace(string(data)))
	if err != nil {
		return objects.Digest{}, false, errors.Wrap(errors.ErrCodeCorrupt, err, "ref %s", ref)
	}
	return d, true, nil
}

// ListRefs enumerates local branch heads as ref name → commit digest,
// sorted by name. Used to build the /refs/summary document.
func (r *Repository) ListRefs() ([]Ref, error) {
	headsDir := filepath.Join(r.path, "refs", "heads")
	var refs []Ref
	err := filepath.WalkDir(headsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(headsDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		digest, err := objects.DigestFromHex(strings.TrimSpace(string(data)))
		if err != nil {
			return errors.Wrap(errors.ErrCodeCorrupt, err, "ref %s", rel)
		}
		refs = append(refs, Ref{Name: filepath.ToSlash(rel), Target: digest})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list refs")
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Ref is a named pointer to a commit.
type Ref struct {
	Name   string
	Target objects.Digest
}
