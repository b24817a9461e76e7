// Package cli implements the treepull command-line interface.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treepull/pkg/buildinfo"
)

// appName is the application name used for directories and display.
const appName = "treepull"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Treepull synchronizes content-addressed tree repositories",
		Long:         `Treepull is a CLI tool for pulling content-addressed object trees from remote repositories, importing only the objects the local store is missing.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		// main prints the returned error itself.
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.initCommand())
	root.AddCommand(c.remoteCommand())
	root.AddCommand(c.pullCommand())
	root.AddCommand(c.commitCommand())
	root.AddCommand(c.refsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.graphCommand())

	return root
}
