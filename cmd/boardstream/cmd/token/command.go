// Package token provides the development token command for the boardstream CLI.
package token

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/auth"
)

// NewCommand creates the token command.
func NewCommand(app application.Application) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:     "token <subject>",
		GroupID: "management",
		Short:   "Sign a token for local development",
		Long: `Token signs an HS256 token for subject with the configured
BOARDSTREAM_JWT_SECRET. Production tokens come from the dashboard's
session layer; this is for curl, the listen command and tests.`,
		Example: `  boardstream token ana
  curl -N "localhost:8080/api/v1/events/stream?token=$(boardstream token ana)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signed, err := auth.NewSigner(app.JWTSecret(), ttl).Sign(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return err
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime (0 for no expiry)")

	return cmd
}
