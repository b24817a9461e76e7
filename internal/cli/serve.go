package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/repo"
	"github.com/matzehuels/treepull/pkg/serve"
)

// serveCommand creates the "serve" command exposing a repository over HTTP
// in the archive-z2 wire layout.
func (c *CLI) serveCommand() *cobra.Command {
	var repoPath string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a repository read-only over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRepoPath(repoPath)
			if err != nil {
				return err
			}
			r, err := repo.Open(path)
			if err != nil {
				return err
			}
			logger := loggerFromContext(cmd.Context())

			srv := &http.Server{
				Addr:    addr,
				Handler: serve.Handler(r, logger),
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("serving repository", "path", r.Path(), "addr", addr)

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}
