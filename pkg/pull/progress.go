package pull

import (
	"context"
	"time"
)

// Progress is a point-in-time snapshot of a running pull, produced roughly
// once per second for the configured Progress callback.
type Progress struct {
	ScannedMeta uint64

	OutstandingFetches int
	OutstandingWrites  int

	FetchedMeta      uint64
	RequestedMeta    uint64
	FetchedContent   uint64
	RequestedContent uint64

	// BytesPerSec is a smoothed download rate (exponential moving average
	// over one-second buckets).
	BytesPerSec      uint64
	BytesTransferred uint64

	// ScanIdle reports whether the scanner had drained its queue at the
	// time of the snapshot.
	ScanIdle bool

	// FetcherState is a short human-readable description of the transport.
	FetcherState string
}

// progressEMA smooths the per-second download rate with alpha 0.5.
type progressEMA struct {
	havePrevious  bool
	previousRate  uint64
	previousTotal uint64
}

// sample folds the next one-second byte total into the moving average.
func (e *progressEMA) sample(total uint64) uint64 {
	delta := total - e.previousTotal
	var rate uint64
	if e.havePrevious {
		rate = delta/2 + e.previousRate/2
	} else {
		e.havePrevious = true
		rate = delta
	}
	e.previousRate = rate
	e.previousTotal = total
	return rate
}

// startTicker posts a tick to the dispatcher queue once per second so that
// progress snapshots are taken on the dispatcher, where the counters live.
// The returned func stops the ticker.
func (p *pullRun) startTicker(ctx context.Context) func() {
	tickCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.fetchQ.push(message{kind: msgTick})
			case <-tickCtx.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// reportProgress builds a snapshot and hands it to the callback. Runs on the
// dispatcher goroutine.
func (p *pullRun) reportProgress() {
	if p.opts.Progress == nil {
		return
	}
	total := p.fetcher.BytesTransferred()
	p.opts.Progress(Progress{
		ScannedMeta:        p.nScanned.Load(),
		OutstandingFetches: p.outstandingMetaFetches + p.outstandingContentFetches,
		OutstandingWrites:  p.outstandingMetaStages + p.outstandingContentStages,
		FetchedMeta:        p.fetchedMeta,
		RequestedMeta:      p.requestedMeta,
		FetchedContent:     p.fetchedContent,
		RequestedContent:   p.requestedContent,
		BytesPerSec:        p.ema.sample(total),
		BytesTransferred:   total,
		ScanIdle:           p.scanIdle,
		FetcherState:       p.fetcher.StateText(),
	})
}
