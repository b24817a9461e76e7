package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/repo"
)

// commitCommand creates the "commit" command importing a directory tree.
func (c *CLI) commitCommand() *cobra.Command {
	var repoPath string
	var branch string
	var subject string
	var body string

	cmd := &cobra.Command{
		Use:   "commit DIR",
		Short: "Import a directory tree as a new commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRepoPath(repoPath)
			if err != nil {
				return err
			}
			r, err := repo.Open(path)
			if err != nil {
				return err
			}

			opts := repo.CommitOptions{
				Subject:   subject,
				Body:      body,
				Timestamp: time.Now().Unix(),
			}
			if branch != "" {
				if parent, ok, err := r.ResolveHead(branch); err == nil && ok {
					opts.Parent = parent.Hex()
				}
			}

			var spin *Spinner
			if stderrIsTerminal() {
				spin = newSpinnerWithContext(cmd.Context(), "Importing "+args[0])
				spin.Start()
			}
			digest, err := r.CommitDirectory(args[0], opts)
			if spin != nil {
				if err != nil {
					spin.StopWithError("Import failed")
				} else {
					spin.StopWithSuccess("Committed " + args[0])
				}
			}
			if err != nil {
				return err
			}

			if branch != "" {
				if err := r.WriteRef("", branch, digest); err != nil {
					return err
				}
				printKeyValue(branch, digest.Hex())
			} else {
				printKeyValue("commit", digest.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "branch to advance to the new commit")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "one-line commit subject")
	cmd.Flags().StringVar(&body, "body", "", "full commit description")
	return cmd
}
