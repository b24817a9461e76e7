package repo

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
)

// Transaction scopes a batch of object writes. Objects land under objects/
// as soon as they are staged so that an aborted pull still leaves re-usable,
// digest-verified objects behind; the transaction only owns the scratch
// space used while writing.
type Transaction struct {
	repo     *Repository
	id       string
	stageDir string
	done     bool
}

// PrepareTransaction opens a staging scope under tmp/.
func (r *Repository) PrepareTransaction() (*Transaction, error) {
	id := uuid.NewString()
	stageDir := filepath.Join(r.TmpDir(), "txn-"+id)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "prepare transaction")
	}
	return &Transaction{repo: r, id: id, stageDir: stageDir}, nil
}

// ID returns the transaction identifier.
func (t *Transaction) ID() string { return t.id }

// Commit finalizes the transaction and removes its scratch space.
func (t *Transaction) Commit() error {
	if t.done {
		return errors.New(errors.ErrCodeInternal, "transaction already finished")
	}
	t.done = true
	if err := os.RemoveAll(t.stageDir); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "commit transaction")
	}
	return nil
}

// Abort drops the transaction scratch space. Objects already staged remain
// in the store; they are content-addressed and valid regardless of the
// failed pull that produced them. Safe to call after Commit.
func (t *Transaction) Abort() {
	if t.done {
		return
	}
	t.done = true
	_ = os.RemoveAll(t.stageDir)
}

// StageMetadata writes a metadata object. The digest is recomputed from raw
// and the object is stored under the computed digest; the caller compares
// the returned digest against the one it requested.
func (t *Transaction) StageMetadata(typ objects.Type, raw []byte) (objects.Digest, error) {
	if !typ.IsMeta() {
		return objects.Digest{}, errors.New(errors.ErrCodeInternal, "type %s is not a metadata type", typ)
	}
	computed := objects.DigestBytes(raw)
	name := objects.NewName(computed, typ)

	tmp := filepath.Join(t.stageDir, uuid.NewString())
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", name)
	}
	if err := t.install(tmp, name); err != nil {
		return objects.Digest{}, err
	}
	return computed, nil
}

// StageContent writes a content object from its parsed header and raw body
// stream. The canonical content stream is hashed while the archive form is
// written; the object is stored under the computed digest.
func (t *Transaction) StageContent(info *objects.FileInfo, body io.Reader) (objects.Digest, error) {
	header, err := objects.EncodeFileHeader(info)
	if err != nil {
		return objects.Digest{}, err
	}
	hasher := objects.NewContentHasher()
	if err := hasher.WriteHeader(header); err != nil {
		return objects.Digest{}, err
	}

	var stream io.Reader
	if body != nil {
		stream = io.TeeReader(body, hasher)
	}

	tmp := filepath.Join(t.stageDir, uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInternal, err, "stage content object")
	}
	werr := objects.WriteContentFile(f, info, stream)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInternal, werr, "stage content object")
	}

	computed := hasher.Sum()
	if err := t.install(tmp, objects.NewName(computed, objects.TypeFile)); err != nil {
		return objects.Digest{}, err
	}
	return computed, nil
}

// install moves a fully written temp file into its content-addressed home.
// An existing object with the same name wins; the duplicate is dropped.
func (t *Transaction) install(tmp string, name objects.Name) error {
	dest := t.repo.objectPath(name)
	if _, err := os.Stat(dest); err == nil {
		return os.Remove(tmp)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "install %s", name)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "install %s", name)
	}
	return nil
}
