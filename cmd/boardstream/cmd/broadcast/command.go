// Package broadcast provides the internal broadcast command for the boardstream CLI.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/emitter"
	"github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
)

// NewCommand creates the broadcast command.
func NewCommand(app application.Application, defaultURL string) *cobra.Command {
	var (
		url     string
		targets []string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:     "broadcast <type> [data]",
		GroupID: "management",
		Short:   "Send one event through a server's internal broadcast endpoint",
		Long: `Broadcast posts an event to /events/broadcast with the configured
BOARDSTREAM_INTERNAL_KEY, the same path a separate mutation process uses.
data is the JSON payload and defaults to {}.`,
		Example: `  boardstream broadcast task.deleted '{"id":"t-1"}'
  boardstream broadcast activity.created '{"action":"deploy"}' --target ana --target bot-1`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data := json.RawMessage("{}")
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return errors.NewValidationError("data", args[1], "not valid JSON")
				}
				data = json.RawMessage(args[1])
			}

			ev, err := events.New(events.Type(args[0]), data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			n, err := emitter.NewHTTPBroadcaster(url, app.InternalKey(), timeout).Broadcast(ctx, ev, targets)
			if err != nil {
				return err
			}

			app.Logger().Debug().
				Str("type", string(ev.Type)).
				Strs("targets", targets).
				Int("delivered", n).
				Msg("Event broadcast")
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "delivered to %d connection(s)\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&url, "url", defaultURL, "API base URL of the boardstream server")
	cmd.Flags().StringSliceVar(&targets, "target", nil, "Deliver only to these subjects (default: everyone)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	return cmd
}
