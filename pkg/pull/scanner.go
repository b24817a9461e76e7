package pull

import (
	"context"
	"sync/atomic"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// maxRecursion bounds the depth of the metadata graph walk. A remote whose
// tree nests deeper than this is treated as corrupt.
const maxRecursion = 256

// scanner walks stored metadata objects to discover their referents. It runs
// as a dedicated goroutine draining scanQ; it owns the ledger outright and
// is the only goroutine that pushes FETCH requests.
//
// For every referent of a scanned object, either the store already has it
// (recurse) or a fetch is enqueued exactly once. An object name enters the
// scanned set only after all its referents were handled, which is what makes
// the transitive-closure invariant hold at termination.
type scanner struct {
	repo          *repo.Repository
	ledger        *ledger
	followRelated bool

	scanQ  *workQueue[message]
	fetchQ *workQueue[message]

	// nScanned is shared with the dispatcher's progress reporting.
	nScanned *atomic.Uint64
}

// run drains scanQ until a quit message or context cancellation. After each
// drain it forwards the newest MAIN_IDLE probe seen (older serials are
// stale and dropped) and then always announces SCAN_IDLE, letting the
// dispatcher decide whether quiescence has been reached.
func (s *scanner) run(ctx context.Context) {
	for {
		msg, ok := s.scanQ.pop(ctx)
		if !ok {
			return
		}

		var lastIdle *message
		quit := false
		for {
			switch msg.kind {
			case msgScan:
				if err := s.scanOne(msg.name, 0); err != nil {
					s.fetchQ.push(message{kind: msgError, err: err})
					return
				}
			case msgMainIdle:
				m := msg
				lastIdle = &m
			case msgQuit:
				quit = true
			}

			next, more := s.scanQ.tryPop()
			if !more {
				break
			}
			msg = next
		}

		if lastIdle != nil {
			s.fetchQ.push(*lastIdle)
		}
		s.fetchQ.push(message{kind: msgScanIdle})

		if quit {
			return
		}
	}
}

// scanOne processes one object name at the given recursion depth.
func (s *scanner) scanOne(name objects.Name, depth int) error {
	if name.Type == objects.TypeFile {
		return errors.New(errors.ErrCodeInternal, "scanner asked to scan content object %s", name)
	}
	if s.ledger.isScanned(name) {
		return nil
	}

	stored, err := s.repo.HasObject(name)
	if err != nil {
		return err
	}

	switch {
	case stored:
		switch name.Type {
		case objects.TypeCommit:
			if err := s.scanCommit(name.Digest, depth); err != nil {
				return err
			}
		case objects.TypeDirTree:
			if err := s.scanDirTree(name.Digest, depth); err != nil {
				return err
			}
		case objects.TypeDirMeta:
			// Leaf; nothing to discover.
		}
		s.ledger.markScanned(name)
		s.nScanned.Add(1)

	case !s.ledger.isRequestedMeta(name.Digest):
		s.ledger.markRequestedMeta(name.Digest)
		s.fetchQ.push(message{kind: msgFetch, name: name})
	}
	return nil
}

// scanCommit walks a stored commit: its root tree and meta, and optionally
// the related commits list.
func (s *scanner) scanCommit(d objects.Digest, depth int) error {
	if depth > maxRecursion {
		return errors.New(errors.ErrCodeCorrupt, "exceeded maximum recursion")
	}

	commit, err := s.repo.LoadCommit(d)
	if err != nil {
		return err
	}

	tree, err := commit.TreeDigest()
	if err != nil {
		return err
	}
	if err := s.scanOne(objects.NewName(tree, objects.TypeDirTree), depth+1); err != nil {
		return err
	}

	meta, err := commit.MetaDigest()
	if err != nil {
		return err
	}
	if err := s.scanOne(objects.NewName(meta, objects.TypeDirMeta), depth+1); err != nil {
		return err
	}

	if s.followRelated {
		for _, rel := range commit.Related {
			reld, err := objects.DigestFromHex(rel.Commit)
			if err != nil {
				return err
			}
			if err := s.scanOne(objects.NewName(reld, objects.TypeCommit), depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanDirTree walks a stored directory tree: missing files become content
// fetch requests, subdirectories recurse.
func (s *scanner) scanDirTree(d objects.Digest, depth int) error {
	if depth > maxRecursion {
		return errors.New(errors.ErrCodeCorrupt, "exceeded maximum recursion")
	}

	tree, err := s.repo.LoadDirTree(d)
	if err != nil {
		return err
	}

	for _, f := range tree.Files {
		if err := errors.ValidateFilename(f.Name); err != nil {
			return errors.Wrap(errors.ErrCodeCorrupt, err, "dirtree %s", d)
		}
		fd, err := objects.DigestFromHex(f.Digest)
		if err != nil {
			return err
		}
		fname := objects.NewName(fd, objects.TypeFile)
		stored, err := s.repo.HasObject(fname)
		if err != nil {
			return err
		}
		if !stored && !s.ledger.isRequestedContent(fd) {
			s.ledger.markRequestedContent(fd)
			s.fetchQ.push(message{kind: msgFetch, name: fname})
		}
	}

	for _, sub := range tree.Dirs {
		if err := errors.ValidateFilename(sub.Name); err != nil {
			return errors.Wrap(errors.ErrCodeCorrupt, err, "dirtree %s", d)
		}
		td, err := objects.DigestFromHex(sub.Tree)
		if err != nil {
			return err
		}
		if err := s.scanOne(objects.NewName(td, objects.TypeDirTree), depth+1); err != nil {
			return err
		}
		md, err := objects.DigestFromHex(sub.Meta)
		if err != nil {
			return err
		}
		if err := s.scanOne(objects.NewName(md, objects.TypeDirMeta), depth+1); err != nil {
			return err
		}
	}
	return nil
}
