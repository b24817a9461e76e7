package serve

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// fixture builds a repository with one committed file and a main branch.
func fixture(t *testing.T) (*repo.Repository, objects.Digest) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hello"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	commit, err := r.CommitDirectory(dir, repo.CommitOptions{Subject: "c", Timestamp: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.WriteRef("", "main", commit); err != nil {
		t.Fatal(err)
	}
	return r, commit
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestServeConfig(t *testing.T) {
	r, _ := fixture(t)
	srv := httptest.NewServer(Handler(r, nil))
	defer srv.Close()

	code, body := get(t, srv.URL+"/config")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(body, "mode") || !strings.Contains(body, "archive-z2") {
		t.Errorf("config body = %q", body)
	}
}

func TestServeRef(t *testing.T) {
	r, commit := fixture(t)
	srv := httptest.NewServer(Handler(r, nil))
	defer srv.Close()

	code, body := get(t, srv.URL+"/refs/heads/main")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if strings.TrimSpace(body) != commit.Hex() {
		t.Errorf("ref body = %q", body)
	}

	code, _ = get(t, srv.URL+"/refs/heads/nope")
	if code != http.StatusNotFound {
		t.Errorf("missing ref status = %d", code)
	}
}

func TestServeSummary(t *testing.T) {
	r, commit := fixture(t)
	srv := httptest.NewServer(Handler(r, nil))
	defer srv.Close()

	code, body := get(t, srv.URL+"/refs/summary")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := commit.Hex() + " main\n"
	if body != want {
		t.Errorf("summary = %q, want %q", body, want)
	}
}

func TestServeObject(t *testing.T) {
	r, commit := fixture(t)
	srv := httptest.NewServer(Handler(r, nil))
	defer srv.Close()

	name := objects.NewName(commit, objects.TypeCommit)
	code, body := get(t, srv.URL+"/"+name.RelativePath())
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	// Served bytes are the canonical object bytes: they hash to the digest
	// they are served under.
	if objects.DigestBytes([]byte(body)) != commit {
		t.Error("served object bytes do not match their digest")
	}

	missing := objects.DigestBytes([]byte("missing"))
	code, _ = get(t, srv.URL+"/"+objects.NewName(missing, objects.TypeCommit).RelativePath())
	if code != http.StatusNotFound {
		t.Errorf("missing object status = %d", code)
	}

	code, _ = get(t, srv.URL+"/objects/zz/notavalidpath.commit")
	if code != http.StatusBadRequest {
		t.Errorf("invalid path status = %d", code)
	}
}
