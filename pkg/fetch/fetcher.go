// Package fetch implements the HTTP object fetcher used by the pull engine.
//
// The fetcher downloads URLs into temp files under the repository scratch
// directory, capping network parallelism with a semaphore and accounting the
// total bytes transferred for progress reporting. Transient transport faults
// (connection errors, HTTP 5xx) are retried with exponential backoff;
// everything else fails fast.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/matzehuels/treepull/pkg/errors"
)

const (
	// defaultParallel caps concurrent in-flight requests.
	defaultParallel = 8

	// defaultTimeout bounds a single HTTP request attempt.
	defaultTimeout = 30 * time.Second

	retryAttempts = 3
	retryDelay    = 500 * time.Millisecond
)

// Options tunes a Fetcher. The zero value selects defaults.
type Options struct {
	// Parallel caps concurrent requests (default 8).
	Parallel int
	// Timeout bounds a single request attempt (default 30s).
	Timeout time.Duration
}

// Fetcher downloads URLs into temp files. It is safe for concurrent use;
// parallelism beyond the configured cap queues on an internal semaphore.
type Fetcher struct {
	http   *http.Client
	tmpDir string
	sem    chan struct{}

	bytesTransferred atomic.Uint64
	inflight         atomic.Int64
}

// New creates a Fetcher writing temp files into tmpDir.
func New(tmpDir string, opts Options) *Fetcher {
	if opts.Parallel <= 0 {
		opts.Parallel = defaultParallel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Fetcher{
		http:   &http.Client{Timeout: opts.Timeout},
		tmpDir: tmpDir,
		sem:    make(chan struct{}, opts.Parallel),
	}
}

// RequestPath downloads url into a temp file and returns its path. The
// caller owns the file and must remove it. Transient failures are retried;
// on any error no temp file is left behind.
func (f *Fetcher) RequestPath(ctx context.Context, url string) (string, error) {
	select {
	case f.sem <- struct{}{}:
	case <-ctx.Done():
		return "", errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "fetch %s", url)
	}
	defer func() { <-f.sem }()

	f.inflight.Add(1)
	defer f.inflight.Add(-1)

	var path string
	err := Retry(ctx, retryAttempts, retryDelay, func() error {
		var attemptErr error
		path, attemptErr = f.fetchOnce(ctx, url)
		return attemptErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(errors.ErrCodeCancelled, err, "fetch %s", url)
		}
		if errors.GetCode(err) != "" {
			return "", err
		}
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", url)
	}
	return path, nil
}

// RequestText downloads url and returns its body as UTF-8 text. Invalid
// UTF-8 is rejected. The temp file is always removed.
func (f *Fetcher) RequestText(ctx context.Context, url string) (string, error) {
	path, err := f.RequestPath(ctx, url)
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "read fetched %s", url)
	}
	if !utf8.Valid(data) {
		return "", errors.New(errors.ErrCodeNotUTF8, "invalid UTF-8 in %s", url)
	}
	return string(data), nil
}

// BytesTransferred returns the cumulative payload bytes downloaded.
func (f *Fetcher) BytesTransferred() uint64 {
	return f.bytesTransferred.Load()
}

// StateText summarizes the fetcher's live state for the progress line.
func (f *Fetcher) StateText() string {
	return fmt.Sprintf("%d requests in flight", f.inflight.Load())
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "build request for %s", url)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", url))
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp.StatusCode); err != nil {
		return "", err
	}

	tmp := filepath.Join(f.tmpDir, "fetch-"+uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "create temp file for %s", url)
	}
	n, err := io.Copy(out, resp.Body)
	f.bytesTransferred.Add(uint64(n))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "download %s", url))
	}
	return tmp, nil
}

func checkStatus(url string, code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return errors.New(errors.ErrCodeNetwork, "fetch %s: not found", url)
	case code >= 500:
		return Retryable(errors.New(errors.ErrCodeNetwork, "fetch %s: status %d", url, code))
	default:
		return errors.New(errors.ErrCodeNetwork, "fetch %s: status %d", url, code)
	}
}
