package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/pull"
	"github.com/matzehuels/treepull/pkg/repo"
)

// pullCommand creates the "pull" command.
func (c *CLI) pullCommand() *cobra.Command {
	var repoPath string
	var related bool
	var parallel int
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "pull REMOTE [BRANCH|COMMIT...]",
		Short: "Download branches from a remote repository",
		Long: `Pull downloads the transitive object closure of the given branches (or full
commit digests) from a configured remote, importing only objects the local
store does not already have. With no branches, the remote's configured
branches list is pulled, falling back to the remote's published ref summary.`,
		Args: cobra.MinimumNArgs(1),
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

			cfg, err := loadToolConfig()
			if err != nil {
				return err
			}
			if parallel == 0 {
				parallel = cfg.Parallel
			}
			showProgress := !noProgress && stderrIsTerminal()
			if cfg.Progress != nil && !*cfg.Progress {
				showProgress = false
			}

			opts := pull.Options{
				FollowRelated: related,
				Parallel:      parallel,
				Logger:        logger,
			}

			remote := args[0]
			refs := args[1:]

			var result *pull.Result
			if showProgress {
				result, err = runPullWithProgress(cmd.Context(), r, remote, refs, opts)
			} else {
				tracker := newProgress(logger)
				result, err = pull.Pull(cmd.Context(), r, remote, refs, opts)
				if err == nil {
					tracker.done(fmt.Sprintf("Pulled %s", remote))
				}
			}
			if err != nil {
				return err
			}

			printPullSummary(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	cmd.Flags().BoolVar(&related, "related", false, "also download related commits")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "max concurrent downloads (0 = default)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the live progress view")
	return cmd
}

// runPullWithProgress drives the pull under a bubbletea program rendering a
// live status line. The pull runs in a goroutine; snapshots and the final
// result are delivered as messages.
func runPullWithProgress(ctx context.Context, r *repo.Repository, remote string, refs []string, opts pull.Options) (*pull.Result, error) {
	pullCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(newPullModel(remote, cancel), tea.WithOutput(os.Stderr))
	opts.Progress = func(p pull.Progress) {
		program.Send(progressMsg(p))
	}

	go func() {
		result, err := pull.Pull(pullCtx, r, remote, refs, opts)
		program.Send(pullDoneMsg{result: result, err: err})
	}()

	final, err := program.Run()
	if err != nil {
		return nil, err
	}
	m := final.(pullModel)
	return m.result, m.err
}

// printPullSummary mirrors the classic end-of-pull report.
func printPullSummary(result *pull.Result) {
	if result.BytesTransferred == 0 {
		printInfo("Already up to date")
		return
	}
	transferred := fmt.Sprintf("%d B", result.BytesTransferred)
	if result.BytesTransferred >= 1024 {
		transferred = fmt.Sprintf("%d KiB", result.BytesTransferred/1024)
	}
	printSuccess("%d metadata, %d content objects fetched; %s transferred in %s",
		result.FetchedMeta, result.FetchedContent, transferred,
		result.Elapsed.Round(time.Second))
	for ref, digest := range result.UpdatedRefs {
		printKeyValue(ref, digest.Hex())
	}
}

// stderrIsTerminal reports whether stderr is attached to a character device.
func stderrIsTerminal() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
