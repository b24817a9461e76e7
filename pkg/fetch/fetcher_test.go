package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/treepull/pkg/errors"
)

func TestRequestPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), Options{})
	path, err := f.RequestPath(context.Background(), srv.URL+"/obj")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("body = %q", data)
	}
	if f.BytesTransferred() != uint64(len("payload")) {
		t.Errorf("bytes = %d", f.BytesTransferred())
	}
}

func TestRequestPathRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), Options{})
	path, err := f.RequestPath(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	defer os.Remove(path)
	if calls.Load() != 3 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestRequestPathNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := New(t.TempDir(), Options{})
	if _, err := f.RequestPath(context.Background(), srv.URL); err == nil {
		t.Fatal("404 should fail")
	} else if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}
	// 404 is permanent; no retries.
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
}

func TestRequestPathCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(t.TempDir(), Options{})
	if _, err := f.RequestPath(ctx, "http://127.0.0.1:1/none"); err == nil {
		t.Fatal("cancelled fetch should fail")
	} else if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}
}

func TestRequestText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte("abc123\n"))
		case "/bad":
			_, _ = w.Write([]byte{0xff, 0xfe, 0xfd})
		}
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	f := New(tmpDir, Options{})

	text, err := f.RequestText(context.Background(), srv.URL+"/ok")
	if err != nil || text != "abc123\n" {
		t.Errorf("RequestText = %q, %v", text, err)
	}

	if _, err := f.RequestText(context.Background(), srv.URL+"/bad"); err == nil {
		t.Fatal("invalid UTF-8 should fail")
	} else if !errors.Is(err, errors.ErrCodeNotUTF8) {
		t.Errorf("wrong code: %s", errors.GetCode(err))
	}

	// Text fetches never leave temp files behind.
	entries, _ := os.ReadDir(tmpDir)
	if len(entries) != 0 {
		t.Errorf("temp files leaked: %v", entries)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return errors.New(errors.ErrCodeCorrupt, "permanent")
	})
	if err == nil || calls != 1 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Retryable(errors.New(errors.ErrCodeNetwork, "transient"))
	})
	if err == nil || calls != 3 {
		t.Errorf("calls = %d, err = %v", calls, err)
	}
}
