// Package stats provides the connection stats command for the boardstream CLI.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/cmd/cmdutil"
	"github.com/agentstation/boardstream/internal/cmd/output"
	"github.com/agentstation/boardstream/internal/registry"
	"github.com/agentstation/boardstream/internal/server/response"
	"github.com/agentstation/boardstream/pkg/errors"
)

// NewCommand creates the stats command.
func NewCommand(app application.Application, defaults cmdutil.ConnectionDefaults) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:     "stats",
		GroupID: "core",
		Short:   "Show the connections open on a running server",
		Example: `  boardstream stats
  boardstream stats --url https://board.example.com/api/v1 -o yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := &cmdutil.ConnectionFlags{
				URL:     cmdutil.MustGetString(cmd, "url"),
				Token:   cmdutil.MustGetString(cmd, "token"),
				Subject: cmdutil.MustGetString(cmd, "subject"),
				TTL:     cmdutil.MustGetDuration(cmd, "token-ttl"),
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			stats, err := fetch(ctx, app, flags)
			if err != nil {
				return err
			}
			return output.FormatStats(cmd.OutOrStdout(), output.Format(app.OutputFormat()), stats)
		},
	}

	cmdutil.AddConnectionFlags(cmd, defaults)
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	return cmd
}

func fetch(ctx context.Context, app application.Application, flags *cmdutil.ConnectionFlags) (registry.Stats, error) {
	var stats registry.Stats

	token, err := flags.ResolveToken(app)
	if err != nil {
		return stats, err
	}

	endpoint := flags.Endpoint("events/stats")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return stats, errors.NewValidationError("url", flags.URL, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return stats, errors.WrapTransport("get", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, 4<<20)
	if resp.StatusCode != http.StatusOK {
		var envelope response.Response
		if err := json.NewDecoder(body).Decode(&envelope); err == nil && envelope.Error != nil {
			return stats, fmt.Errorf("stats request failed: %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return stats, fmt.Errorf("stats request failed: %s", resp.Status)
	}

	if err := json.NewDecoder(body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("decoding stats: %w", err)
	}
	return stats, nil
}
