// Package serve exposes a local repository over HTTP in the archive-z2 wire
// layout, the read-only counterpart of the pull engine:
//
//	GET /config               repository keyfile
//	GET /refs/heads/<branch>  commit digest of a branch, one line
//	GET /refs/summary         "<digest> <ref>" per line, all branches
//	GET /objects/<ab>/<rest>.<ext>  object file
//
// The handler serves everything straight from the store; objects are
// immutable so no caching headers or validators are needed.
package serve

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/treepull/pkg/errors"
	"github.com/matzehuels/treepull/pkg/objects"
	"github.com/matzehuels/treepull/pkg/repo"
)

// Handler builds the read-only HTTP handler for a repository. Logger may be
// nil to disable request logging.
func Handler(r *repo.Repository, logger *charmlog.Logger) http.Handler {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	s := &server{repo: r, logger: logger}

	router := chi.NewRouter()
	router.Get("/config", s.handleConfig)
	router.Get("/refs/summary", s.handleSummary)
	router.Get("/refs/heads/*", s.handleRef)
	router.Get("/objects/{prefix}/{file}", s.handleObject)
	return router
}

type server struct {
	repo   *repo.Repository
	logger *charmlog.Logger
}

func (s *server) handleConfig(w http.ResponseWriter, req *http.Request) {
	data, err := s.repo.ConfigBytes()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

func (s *server) handleSummary(w http.ResponseWriter, req *http.Request) {
	refs, err := s.repo.ListRefs()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, ref := range refs {
		fmt.Fprintf(w, "%s %s\n", ref.Target.Hex(), ref.Name)
	}
}

func (s *server) handleRef(w http.ResponseWriter, req *http.Request) {
	branch := chi.URLParam(req, "*")
	if err := errors.ValidateRefName(branch); err != nil {
		http.Error(w, "invalid ref", http.StatusBadRequest)
		return
	}
	d, ok, err := s.repo.ResolveHead(branch)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	if !ok {
		http.NotFound(w, req)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%s\n", d.Hex())
}

func (s *server) handleObject(w http.ResponseWriter, req *http.Request) {
	name, err := parseObjectPath(chi.URLParam(req, "prefix"), chi.URLParam(req, "file"))
	if err != nil {
		http.Error(w, "invalid object path", http.StatusBadRequest)
		return
	}
	obj, err := s.repo.OpenObject(name)
	if err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			http.NotFound(w, req)
			return
		}
		s.fail(w, req, err)
		return
	}
	defer obj.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.Copy(w, obj)
}

// parseObjectPath reassembles and validates an object name from its wire
// path components (the two-character fan-out prefix and "<rest>.<ext>").
func parseObjectPath(prefix, file string) (objects.Name, error) {
	rest, ext, ok := strings.Cut(file, ".")
	if !ok || len(prefix) != 2 {
		return objects.Name{}, errors.New(errors.ErrCodeInvalidInput, "malformed object path")
	}
	typ, err := objects.TypeFromExtension(ext)
	if err != nil {
		return objects.Name{}, err
	}
	d, err := objects.DigestFromHex(prefix + rest)
	if err != nil {
		return objects.Name{}, err
	}
	return objects.NewName(d, typ), nil
}

func (s *server) fail(w http.ResponseWriter, req *http.Request, err error) {
	s.logger.Error("request failed", "path", req.URL.Path, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}
