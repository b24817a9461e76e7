package repo

import (
	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
)

// ClosureEdge is one reference between two stored objects.
type ClosureEdge struct {
	From objects.Name
	To   objects.Name
}

// Closure is the object graph reachable from a commit.
type Closure struct {
	Nodes []objects.Name
	Edges []ClosureEdge
}

// WalkClosure walks the stored object graph from a commit, returning every
// reachable object and the references between them. All objects in the
// closure must be present in the store; a missing referent is a corruption
// error. With followRelated, related commits are traversed too.
func (r *Repository) WalkClosure(root objects.Digest, followRelated bool) (*Closure, error) {
	w := &closureWalker{repo: r, followRelated: followRelated, seen: make(map[objects.Name]bool)}
	if err := w.visitCommit(root); err != nil {
		return nil, err
	}
	return &w.closure, nil
}

type closureWalker struct {
	repo          *Repository
	followRelated bool
	seen          map[objects.Name]bool
	closure       Closure
}

func (w *closureWalker) add(n objects.Name) bool {
	if w.seen[n] {
		return false
	}
	w.seen[n] = true
	w.closure.Nodes = append(w.closure.Nodes, n)
	return true
}

func (w *closureWalker) edge(from, to objects.Name) {
	w.closure.Edges = append(w.closure.Edges, ClosureEdge{From: from, To: to})
}

func (w *closureWalker) visitCommit(d objects.Digest) error {
	name := objects.NewName(d, objects.TypeCommit)
	if !w.add(name) {
		return nil
	}
	commit, err := w.repo.LoadCommit(d)
	if err != nil {
		return err
	}
	tree, err := commit.TreeDigest()
	if err != nil {
		return err
	}
	meta, err := commit.MetaDigest()
	if err != nil {
		return err
	}
	w.edge(name, objects.NewName(tree, objects.TypeDirTree))
	if err := w.visitDirTree(tree); err != nil {
		return err
	}
	w.edge(name, objects.NewName(meta, objects.TypeDirMeta))
	if err := w.visitDirMeta(meta); err != nil {
		return err
	}
	if w.followRelated {
		for _, rel := range commit.Related {
			reld, err := objects.DigestFromHex(rel.Commit)
			if err != nil {
				return err
			}
			w.edge(name, objects.NewName(reld, objects.TypeCommit))
			if err := w.visitCommit(reld); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *closureWalker) visitDirTree(d objects.Digest) error {
	name := objects.NewName(d, objects.TypeDirTree)
	if !w.add(name) {
		return nil
	}
	tree, err := w.repo.LoadDirTree(d)
	if err != nil {
		return err
	}
	for _, f := range tree.Files {
		fd, err := objects.DigestFromHex(f.Digest)
		if err != nil {
			return err
		}
		fname := objects.NewName(fd, objects.TypeFile)
		w.edge(name, fname)
		if w.add(fname) {
			ok, err := w.repo.HasObject(fname)
			if err != nil {
				return err
			}
			if !ok {
				return errors.New(errors.ErrCodeCorrupt, "closure references missing object %s", fname)
			}
		}
	}
	for _, sub := range tree.Dirs {
		td, err := objects.DigestFromHex(sub.Tree)
		if err != nil {
			return err
		}
		md, err := objects.DigestFromHex(sub.Meta)
		if err != nil {
			return err
		}
		w.edge(name, objects.NewName(td, objects.TypeDirTree))
		if err := w.visitDirTree(td); err != nil {
			return err
		}
		w.edge(name, objects.NewName(md, objects.TypeDirMeta))
		if err := w.visitDirMeta(md); err != nil {
			return err
		}
	}
	return nil
}

// visitDirMeta records a dirmeta leaf and checks that it is stored.
func (w *closureWalker) visitDirMeta(d objects.Digest) error {
	if !w.add(objects.NewName(d, objects.TypeDirMeta)) {
		return nil
	}
	_, err := w.repo.LoadDirMeta(d)
	return err
}
