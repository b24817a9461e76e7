package pull

import (
	"testing"

	"github.com/matzehuels/treepull/pkg/objects"
)

func TestLedgerInsertOnce(t *testing.T) {
	l := newLedger()
	d := objects.DigestBytes([]byte("x"))
	name := objects.NewName(d, objects.TypeCommit)

	if !l.markScanned(name) {
		t.Error("first markScanned should insert")
	}
	if l.markScanned(name) {
		t.Error("second markScanned should report existing")
	}
	if !l.isScanned(name) {
		t.Error("isScanned after mark")
	}

	if !l.markRequestedMeta(d) || l.markRequestedMeta(d) {
		t.Error("requested-meta insert-once violated")
	}
	if !l.markRequestedContent(d) || l.markRequestedContent(d) {
		t.Error("requested-content insert-once violated")
	}
	if !l.isRequestedMeta(d) || !l.isRequestedContent(d) {
		t.Error("lookups after mark")
	}
}

func TestLedgerKeysByNameNotDigest(t *testing.T) {
	l := newLedger()
	d := objects.DigestBytes([]byte("x"))

	l.markScanned(objects.NewName(d, objects.TypeDirTree))
	if l.isScanned(objects.NewName(d, objects.TypeDirMeta)) {
		t.Error("scanned set must distinguish types under one digest")
	}
}
