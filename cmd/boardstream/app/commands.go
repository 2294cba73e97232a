package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/boardstream/cmd/broadcast"
	"github.com/agentstation/boardstream/cmd/boardstream/cmd/listen"
	"github.com/agentstation/boardstream/cmd/boardstream/cmd/serve"
	"github.com/agentstation/boardstream/cmd/boardstream/cmd/stats"
	"github.com/agentstation/boardstream/cmd/boardstream/cmd/token"
	"github.com/agentstation/boardstream/internal/cmd/cmdutil"
	"github.com/agentstation/boardstream/internal/cmd/output"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(serve.NewCommand(a))
	rootCmd.AddCommand(listen.NewCommand(a, a.connectionDefaults()))
	rootCmd.AddCommand(stats.NewCommand(a, a.connectionDefaults()))

	// Management commands
	rootCmd.AddCommand(token.NewCommand(a))
	rootCmd.AddCommand(broadcast.NewCommand(a, a.config.ServerURL))

	// Utility commands
	rootCmd.AddCommand(a.NewVersionCommand())
}

func (a *App) connectionDefaults() cmdutil.ConnectionDefaults {
	return cmdutil.ConnectionDefaults{
		URL:   a.config.ServerURL,
		Token: a.config.Token,
	}
}

// versionInfo is the structured form of the version command output.
type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"built_at" yaml:"built_at"`
	BuiltBy string `json:"built_by" yaml:"built_by"`
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.config.Format == "" {
				cmd.Printf("boardstream %s\n", a.version)
				if a.config.Verbose {
					cmd.Printf("  commit:   %s\n", a.commit)
					cmd.Printf("  built:    %s\n", a.date)
					cmd.Printf("  built by: %s\n", a.builtBy)
				}
				return nil
			}
			info := versionInfo{Version: a.version, Commit: a.commit, Date: a.date, BuiltBy: a.builtBy}
			return output.NewFormatter(output.Format(a.config.Format)).Format(cmd.OutOrStdout(), info)
		},
	}
}
