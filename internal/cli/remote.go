package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/repo"
)

// remoteCommand creates the remote management command.
func (c *CLI) remoteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage remote repositories",
	}
	cmd.AddCommand(c.remoteAddCommand())
	return cmd
}

// remoteAddCommand creates the "remote add" subcommand.
func (c *CLI) remoteAddCommand() *cobra.Command {
	var repoPath string
	var branches string

	cmd := &cobra.Command{
		Use:   "add NAME URL",
		Short: "Record a remote repository in the repo config",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveRepoPath(repoPath)
			if err != nil {
				return err
			}
			r, err := repo.Open(path)
			if err != nil {
				return err
			}

			var branchList []string
			if branches != "" {
				branchList = strings.Split(branches, ",")
			}
			if err := r.AddRemote(args[0], args[1], branchList); err != nil {
				return err
			}
			printSuccess("Added remote %s", args[0])
			printKeyValue("url", args[1])
			if len(branchList) > 0 {
				printKeyValue("branches", strings.Join(branchList, " "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	cmd.Flags().StringVar(&branches, "branches", "", "comma-separated branches pulled by default")
	return cmd
}
