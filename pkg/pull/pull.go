// Package pull implements the concurrent pull pipeline of a content-addressed
// tree repository synchronizer.
//
// Pulling downloads the transitive closure of one or more commits from an
// archive-z2 remote into a local repository, importing only objects the
// local store does not already have. Two cooperating single-threaded
// schedulers drive the work:
//
//   - The scanner goroutine parses stored metadata objects to discover their
//     referents, enqueuing a fetch for every missing one. It owns the dedup
//     ledger outright.
//   - The dispatcher (the goroutine calling Pull) issues network fetches,
//     stages verified objects into the store, and re-enqueues freshly staged
//     metadata for scanning. It owns every counter, the fetcher and the
//     repository transaction.
//
// The two communicate only through unbounded message queues. Quiescence is
// detected with a serial-numbered idle token round-tripped between them:
// counters alone cannot prove completion because a scan in flight may still
// emit fetches that have not yet arrived at the dispatcher.
package pull

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/fetch"
	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// Options configures a pull.
type Options struct {
	// FollowRelated also downloads the commits listed in each commit's
	// related set.
	FollowRelated bool

	// Parallel caps concurrent network requests. Zero selects the fetcher
	// default.
	Parallel int

	// Progress, when non-nil, receives a snapshot roughly once per second
	// while the pull runs. It is called from the pulling goroutine.
	Progress func(Progress)

	// Logger receives debug and informational output. Nil disables logging.
	Logger *charmlog.Logger
}

// Result summarizes a completed pull.
type Result struct {
	FetchedMeta      uint64
	FetchedContent   uint64
	BytesTransferred uint64
	Elapsed          time.Duration

	// UpdatedRefs maps ref name to the commit it now points at. Refs whose
	// remote position was unchanged do not appear.
	UpdatedRefs map[string]objects.Digest
}

// Pull downloads refsOrCommits from the named remote into r. Each argument
// is either a branch name or a full hex commit digest. With no arguments the
// remote's configured branches list is used, falling back to the remote's
// ref summary.
func Pull(ctx context.Context, r *repo.Repository, remoteName string, refsOrCommits []string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}

	baseURL, err := r.RemoteURL(remoteName)
	if err != nil {
		return nil, err
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	p := &pullRun{
		repo:     r,
		remote:   remoteName,
		baseURL:  baseURL,
		tokens:   refsOrCommits,
		opts:     opts,
		logger:   logger,
		fetcher:  fetch.New(r.TmpDir(), fetch.Options{Parallel: opts.Parallel}),
		scanQ:    newWorkQueue[message](),
		fetchQ:   newWorkQueue[message](),
		nScanned: &atomic.Uint64{},
	}
	return p.run(ctx)
}

// pullRun is the per-pull state owned by the dispatcher. Counters and the
// idle latch are mutated only on the dispatcher goroutine; nScanned is the
// one value shared with the scanner and is atomic.
type pullRun struct {
	repo    *repo.Repository
	remote  string
	baseURL string
	tokens  []string
	opts    Options
	logger  *charmlog.Logger
	fetcher *fetch.Fetcher

	scanQ  *workQueue[message]
	fetchQ *workQueue[message]

	txn *repo.Transaction

	// async fetch/stage goroutines, joined before returning
	async sync.WaitGroup

	nScanned *atomic.Uint64

	scanIdle   bool
	idleSerial uint64

	outstandingMetaFetches    int
	outstandingContentFetches int
	outstandingMetaStages     int
	outstandingContentStages  int

	requestedMeta    uint64
	requestedContent uint64
	fetchedMeta      uint64
	fetchedContent   uint64

	caughtErr error

	ema progressEMA
}

func (p *pullRun) run(ctx context.Context) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.checkRemoteMode(ctx); err != nil {
		return nil, err
	}

	commitsToFetch, requestedRefs, err := p.resolveArguments(ctx)
	if err != nil {
		return nil, err
	}

	txn, err := p.repo.PrepareTransaction()
	if err != nil {
		return nil, err
	}
	p.txn = txn
	defer txn.Abort()

	// The scanner owns the ledger; nothing else touches it.
	scan := &scanner{
		repo:          p.repo,
		ledger:        newLedger(),
		followRelated: p.opts.FollowRelated,
		scanQ:         p.scanQ,
		fetchQ:        p.fetchQ,
		nScanned:      p.nScanned,
	}
	var scannerDone sync.WaitGroup
	scannerDone.Add(1)
	go func() {
		defer scannerDone.Done()
		scan.run(ctx)
	}()

	updatedRefs := p.seed(commitsToFetch, requestedRefs)

	var stopTicker func()
	if p.opts.Progress != nil {
		stopTicker = p.startTicker(ctx)
	}

	// Prime the idle token and drive the dispatcher to quiescence.
	p.idleSerial++
	p.scanQ.push(message{kind: msgMainIdle, serial: p.idleSerial})
	p.dispatch(ctx)

	if stopTicker != nil {
		stopTicker()
	}

	// Shut the scanner down and let in-flight completions drain so every
	// temp file is accounted for.
	p.scanQ.push(message{kind: msgQuit})
	cancel()
	scannerDone.Wait()
	p.async.Wait()
	p.drainTempFiles()

	if p.caughtErr != nil {
		return nil, p.caughtErr
	}

	if err := txn.Commit(); err != nil {
		return nil, err
	}

	for ref, digest := range updatedRefs {
		if err := p.repo.WriteRef(p.remote, ref, digest); err != nil {
			return nil, err
		}
		p.logger.Info("ref updated", "ref", p.remote+"/"+ref, "commit", digest.Hex())
	}

	return &Result{
		FetchedMeta:      p.fetchedMeta,
		FetchedContent:   p.fetchedContent,
		BytesTransferred: p.fetcher.BytesTransferred(),
		Elapsed:          time.Since(start),
		UpdatedRefs:      updatedRefs,
	}, nil
}

// checkRemoteMode fetches the remote's config keyfile and verifies its mode
// is archive-z2, the only layout pullable over plain HTTP.
func (p *pullRun) checkRemoteMode(ctx context.Context) error {
	contents, err := p.fetcher.RequestText(ctx, p.baseURL+"/config")
	if err != nil {
		return err
	}
	cfg, err := repo.ParseKeyFile([]byte(contents))
	if err != nil {
		return err
	}
	mode, err := repo.KeyFileMode(cfg)
	if err != nil {
		return err
	}
	if mode != repo.ModeArchiveZ2 {
		return errors.New(errors.ErrCodeUnsupported, "can't pull from remote with mode %q", mode)
	}
	return nil
}

// fetchRef downloads refs/heads/<branch> and validates its content as a
// commit digest.
func (p *pullRun) fetchRef(ctx context.Context, branch string) (objects.Digest, error) {
	contents, err := p.fetcher.RequestText(ctx, p.baseURL+"/refs/heads/"+branch)
	if err != nil {
		return objects.Digest{}, err
	}
	d, err := objects.DigestFromHex(strings.TrimSpace(contents))
	if err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeCorrupt, err, "ref %q", branch)
	}
	return d, nil
}

// resolveArguments turns the caller's tokens into commit digests to fetch
// and branch refs to both fetch and update. With no tokens, the remote's
// configured branches list is consulted, then the ref summary.
func (p *pullRun) resolveArguments(ctx context.Context) ([]objects.Digest, []repo.Ref, error) {
	var commits []objects.Digest
	var refs []repo.Ref

	if len(p.tokens) > 0 {
		for _, token := range p.tokens {
			if errors.ValidateChecksumString(token) == nil {
				d, err := objects.DigestFromHex(token)
				if err != nil {
					return nil, nil, err
				}
				commits = append(commits, d)
				continue
			}
			if err := errors.ValidateRefName(token); err != nil {
				return nil, nil, err
			}
			d, err := p.fetchRef(ctx, token)
			if err != nil {
				return nil, nil, err
			}
			refs = append(refs, repo.Ref{Name: token, Target: d})
		}
		return commits, refs, nil
	}

	branches, configured, err := p.repo.RemoteBranches(p.remote)
	if err != nil {
		return nil, nil, err
	}
	if !configured {
		contents, err := p.fetcher.RequestText(ctx, p.baseURL+"/refs/summary")
		if err != nil {
			return nil, nil, err
		}
		refs, err = parseRefSummary(contents)
		if err != nil {
			return nil, nil, err
		}
		return commits, refs, nil
	}

	if len(branches) == 0 {
		p.logger.Warn("no configured branches for remote", "remote", p.remote)
	}
	for _, branch := range branches {
		d, err := p.fetchRef(ctx, branch)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, repo.Ref{Name: branch, Target: d})
	}
	return commits, refs, nil
}

// seed queues the initial commit scans. A ref whose resolved digest equals
// the locally stored remote position produces no work and is not updated.
func (p *pullRun) seed(commits []objects.Digest, refs []repo.Ref) map[string]objects.Digest {
	for _, d := range commits {
		p.scanQ.push(message{kind: msgScan, name: objects.NewName(d, objects.TypeCommit)})
	}

	updated := make(map[string]objects.Digest)
	for _, ref := range refs {
		current, ok, err := p.repo.ResolveRev(p.remote+"/"+ref.Name, true)
		if err == nil && ok && current == ref.Target {
			p.logger.Info("no changes", "ref", p.remote+"/"+ref.Name)
			continue
		}
		p.scanQ.push(message{kind: msgScan, name: objects.NewName(ref.Target, objects.TypeCommit)})
		updated[ref.Name] = ref.Target
	}
	return updated
}

// dispatch is the main scheduler loop. It processes scanner messages and
// async completion events until quiescence is proven or the first error.
func (p *pullRun) dispatch(ctx context.Context) {
	for {
		msg, ok := p.fetchQ.pop(ctx)
		if !ok {
			p.throwError(errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "pull cancelled"))
			return
		}

		switch msg.kind {
		case msgMainIdle:
			if msg.serial == p.idleSerial && !p.scanIdle {
				p.scanIdle = true
				p.logger.Debug("metadata scan is idle")
			}

		case msgScanIdle:
			if !p.scanIdle {
				p.idleSerial++
				p.scanQ.push(message{kind: msgMainIdle, serial: p.idleSerial})
			}

		case msgFetch:
			p.startFetch(ctx, msg.name)

		case msgFetchDone:
			p.onFetchDone(ctx, msg)

		case msgStageDone:
			p.onStageDone(msg)

		case msgError:
			p.throwError(msg.err)

		case msgTick:
			p.reportProgress()
		}

		if p.caughtErr != nil {
			return
		}
		if p.scanIdle && p.fetchIdle() && p.stageIdle() {
			return
		}
	}
}

func (p *pullRun) fetchIdle() bool {
	return p.outstandingMetaFetches == 0 && p.outstandingContentFetches == 0
}

func (p *pullRun) stageIdle() bool {
	return p.outstandingMetaStages == 0 && p.outstandingContentStages == 0
}

// throwError records the first error; later ones are logged and dropped.
func (p *pullRun) throwError(err error) {
	if err == nil {
		return
	}
	if p.caughtErr == nil {
		p.caughtErr = err
		return
	}
	p.logger.Debug("suppressing secondary error", "err", err)
}

// startFetch issues the network read for one object. The completion is
// posted back to the dispatcher queue; no state is touched off-thread.
func (p *pullRun) startFetch(ctx context.Context, name objects.Name) {
	if name.Type.IsMeta() {
		p.outstandingMetaFetches++
		p.requestedMeta++
	} else {
		p.outstandingContentFetches++
		p.requestedContent++
	}

	url := p.baseURL + "/" + name.RelativePath()
	p.async.Add(1)
	go func() {
		defer p.async.Done()
		path, err := p.fetcher.RequestPath(ctx, url)
		p.fetchQ.push(message{kind: msgFetchDone, name: name, tempPath: path, err: err})
	}()
}

// onFetchDone accounts a completed network read and starts the async stage.
func (p *pullRun) onFetchDone(ctx context.Context, msg message) {
	if msg.name.Type.IsMeta() {
		p.outstandingMetaFetches--
		p.fetchedMeta++
	} else {
		p.outstandingContentFetches--
	}
	if msg.err != nil {
		p.throwError(msg.err)
		return
	}
	p.logger.Debug("fetch complete", "object", msg.name)

	if msg.name.Type.IsMeta() {
		p.outstandingMetaStages++
	} else {
		p.outstandingContentStages++
	}
	p.async.Add(1)
	go func() {
		defer p.async.Done()
		computed, err := p.stageObject(msg.name, msg.tempPath)
		p.fetchQ.push(message{
			kind:     msgStageDone,
			name:     msg.name,
			tempPath: msg.tempPath,
			computed: computed,
			err:      err,
		})
	}()
}

// stageObject parses a fetched temp file as the object type it was requested
// under and writes it into the store, returning the store's recomputed
// digest. Runs off the dispatcher; touches no dispatcher state.
func (p *pullRun) stageObject(name objects.Name, tempPath string) (objects.Digest, error) {
	if name.Type.IsMeta() {
		raw, err := os.ReadFile(tempPath)
		if err != nil {
			return objects.Digest{}, errors.Wrap(errors.ErrCodeInternal, err, "read fetched %s", name)
		}
		if _, err := objects.ParseMetadata(name.Type, raw); err != nil {
			return objects.Digest{}, err
		}
		return p.txn.StageMetadata(name.Type, raw)
	}

	f, err := os.Open(tempPath)
	if err != nil {
		return objects.Digest{}, errors.Wrap(errors.ErrCodeInternal, err, "read fetched %s", name)
	}
	defer f.Close()
	info, body, err := objects.ParseContentFile(f)
	if err != nil {
		return objects.Digest{}, err
	}
	defer body.Close()
	return p.txn.StageContent(info, body)
}

// onStageDone verifies the staged digest against the requested one, removes
// the temp file, and re-enqueues staged metadata for scanning.
func (p *pullRun) onStageDone(msg message) {
	if msg.name.Type.IsMeta() {
		p.outstandingMetaStages--
	} else {
		p.outstandingContentStages--
	}
	if msg.tempPath != "" {
		_ = os.Remove(msg.tempPath)
	}
	if msg.err != nil {
		p.throwError(msg.err)
		return
	}
	if msg.computed != msg.name.Digest {
		p.throwError(errors.New(errors.ErrCodeChecksum,
			"object %s staged as %s; server response does not match requested digest",
			msg.name, msg.computed.Hex()))
		return
	}
	p.logger.Debug("stage complete", "object", msg.name)

	if msg.name.Type.IsMeta() {
		// Fresh metadata means the scanner has new work: the idle latch no
		// longer holds.
		p.scanIdle = false
		p.scanQ.push(message{kind: msgScan, name: msg.name})
	} else {
		p.fetchedContent++
	}
}

// drainTempFiles removes temp files carried by events that were still queued
// when the loop exited. Best effort; called after all async work is joined.
func (p *pullRun) drainTempFiles() {
	for {
		msg, ok := p.fetchQ.tryPop()
		if !ok {
			return
		}
		if (msg.kind == msgFetchDone || msg.kind == msgStageDone) && msg.err == nil && msg.tempPath != "" {
			_ = os.Remove(msg.tempPath)
		}
	}
}
