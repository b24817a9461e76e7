package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/repo"
)

// initCommand creates the "init" command.
func (c *CLI) initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init PATH",
		Short: "Create a new repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Init(args[0])
			if err != nil {
				return err
			}
			printSuccess("Initialized empty repository")
			printDetail("Path: %s", r.Path())
			return nil
		},
	}
}
