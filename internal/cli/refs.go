package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/repo"
)

// refsCommand creates the "refs" command listing local branch heads.
func (c *CLI) refsCommand() *cobra.Command {
	var repoPath string

	cmd := &cobra.Command{
		Use:   "refs",
		Short: "List local branch heads",
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
			refs, err := r.ListRefs()
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				printInfo("No refs")
				return nil
			}
			for _, ref := range refs {
				printKeyValue(ref.Name, ref.Target.Hex())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "repository path")
	return cmd
}
