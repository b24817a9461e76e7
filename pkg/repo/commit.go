package repo

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
)

// CommitOptions describes the commit record written by CommitDirectory.
type CommitOptions struct {
	Subject   string
	Body      string
	Timestamp int64
	Parent    string          // optional parent commit digest (hex)
	Related   []objects.RelatedCommit
}

// CommitDirectory imports a directory tree from the filesystem as a commit,
// staging every file, dirtree and dirmeta object, and returns the commit
// digest. Identical content dedups naturally: objects that already exist in
// the store are not rewritten.
func (r *Repository) CommitDirectory(dir string, opts CommitOptions) (objects.Digest, error) {
	txn, err := r.PrepareTransaction()
	if err != nil {
		return objects.Digest{}, err
	}
	defer txn.Abort()

	tree, meta, err := importDir(txn, dir)
	if err != nil {
		return objects.Digest{}, err
	}

	commit := &objects.Commit{
		Parent:    opts.Parent,
		Related:   opts.Related,
		Subject:   opts.Subject,
		Body:      opts.Body,
		Timestamp: opts.Timestamp,
		Tree:      tree.Hex(),
		Meta:      meta.Hex(),
	}
	raw, err := objects.EncodeMetadata(commit)
	if err != nil {
		return objects.Digest{}, err
	}
	digest, err := txn.StageMetadata(objects.TypeCommit, raw)
	if err != nil {
		return objects.Digest{}, err
	}
	if err := txn.Commit(); err != nil {
		return objects.Digest{}, err
	}
	return digest, nil
}

// importDir stages one directory and everything below it, returning the
// digests of its dirtree and dirmeta objects.
func importDir(txn *Transaction, dir string) (tree, meta objects.Digest, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return tree, meta, errors.Wrap(errors.ErrCodeInvalidInput, err, "read directory %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var dt objects.DirTree
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			subTree, subMeta, err := importDir(txn, path)
			if err != nil {
				return tree, meta, err
			}
			dt.Dirs = append(dt.Dirs, objects.DirEntry{
				Name: entry.Name(),
				Tree: subTree.Hex(),
				Meta: subMeta.Hex(),
			})
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return tree, meta, errors.Wrap(errors.ErrCodeInvalidInput, err, "read symlink %s", path)
			}
			d, err := txn.StageContent(&objects.FileInfo{Mode: uint32(fs.ModeSymlink), Link: target}, nil)
			if err != nil {
				return tree, meta, err
			}
			dt.Files = append(dt.Files, objects.FileEntry{Name: entry.Name(), Digest: d.Hex()})
		case entry.Type().IsRegular():
			d, err := importFile(txn, path)
			if err != nil {
				return tree, meta, err
			}
			dt.Files = append(dt.Files, objects.FileEntry{Name: entry.Name(), Digest: d.Hex()})
		default:
			return tree, meta, errors.New(errors.ErrCodeInvalidInput, "unsupported file type: %s", path)
		}
	}

	rawTree, err := objects.EncodeMetadata(&dt)
	if err != nil {
		return tree, meta, err
	}
	tree, err = txn.StageMetadata(objects.TypeDirTree, rawTree)
	if err != nil {
		return tree, meta, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		return tree, meta, errors.Wrap(errors.ErrCodeInvalidInput, err, "stat %s", dir)
	}
	rawMeta, err := objects.EncodeMetadata(&objects.DirMeta{Mode: uint32(info.Mode().Perm())})
	if err != nil {
		return tree, meta, err
	}
	meta, err = txn.StageMetadata(objects.TypeDirMeta, rawMeta)
	return tree, meta, err
}

func importFile(txn *Transaction, path string) (objects.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "stat %s", path)
	}
	return txn.StageContent(&objects.FileInfo{
		Size: info.Size(),
		Mode: uint32(info.Mode().Perm()),
	}, f)
}
