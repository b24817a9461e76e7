package pull

import (
	"github.com/matzehuels/treepull/pkg/objects"
)

// msgKind discriminates the messages exchanged between the scanner and the
// dispatcher, plus the completion events the dispatcher posts to itself.
type msgKind int

const (
	// msgScan asks the scanner to scan a metadata object.
	msgScan msgKind = iota
	// msgFetch asks the dispatcher to download an object.
	msgFetch
	// msgScanIdle tells the dispatcher the scanner has drained its queue.
	msgScanIdle
	// msgMainIdle is the serial-numbered idle probe round-tripped between
	// the two schedulers.
	msgMainIdle
	// msgQuit asks the scanner to exit after its current drain.
	msgQuit
	// msgError carries a scan failure to the dispatcher.
	msgError

	// Dispatcher-local completion events. Async fetch and stage operations
	// post these back so all counter mutations happen on the dispatcher.
	msgFetchDone
	msgStageDone
	msgTick
)

// message is the single envelope used on both queues, mirroring the shape
// of the work items: only the fields relevant to a kind are set.
type message struct {
	kind msgKind

	name   objects.Name
	serial uint64
	err    error

	// fetch/stage completion payload
	tempPath string
	computed objects.Digest
}
