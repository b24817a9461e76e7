package pull

import (
	"github.com/matzehuels/treepull/pkg/objects"
)

// ledger tracks which objects have been scanned and which digests already
// have a fetch in flight. All sets are grow-only for the duration of a pull
// and keyed by raw digest bytes, not hex strings.
//
// The ledger is not synchronized: it is owned by the scanner goroutine and
// never touched elsewhere.
type ledger struct {
	scanned          map[objects.Name]struct{}
	requestedMeta    map[objects.Digest]struct{}
	requestedContent map[objects.Digest]struct{}
}

func newLedger() *ledger {
	return &ledger{
		scanned:          make(map[objects.Name]struct{}),
		requestedMeta:    make(map[objects.Digest]struct{}),
		requestedContent: make(map[objects.Digest]struct{}),
	}
}

// markScanned inserts name; reports true iff it was newly inserted.
func (l *ledger) markScanned(name objects.Name) bool {
	if _, ok := l.scanned[name]; ok {
		return false
	}
	l.scanned[name] = struct{}{}
	return true
}

func (l *ledger) isScanned(name objects.Name) bool {
	_, ok := l.scanned[name]
	return ok
}

// markRequestedMeta inserts d; reports true iff it was newly inserted.
func (l *ledger) markRequestedMeta(d objects.Digest) bool {
	if _, ok := l.requestedMeta[d]; ok {
		return false
	}
	l.requestedMeta[d] = struct{}{}
	return true
}

func (l *ledger) isRequestedMeta(d objects.Digest) bool {
	_, ok := l.requestedMeta[d]
	return ok
}

// markRequestedContent inserts d; reports true iff it was newly inserted.
func (l *ledger) markRequestedContent(d objects.Digest) bool {
	if _, ok := l.requestedContent[d]; ok {
		return false
	}
	l.requestedContent[d] = struct{}{}
	return true
}

func (l *ledger) isRequestedContent(d objects.Digest) bool {
	_, ok := l.requestedContent[d]
	return ok
}
