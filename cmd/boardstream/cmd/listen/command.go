// Package listen provides the stream listener command for the boardstream CLI.
package listen

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/agentstation/boardstream/cmd/application"
	"github.com/agentstation/boardstream/internal/cmd/cmdutil"
	"github.com/agentstation/boardstream/internal/cmd/emoji"
	"github.com/agentstation/boardstream/internal/cmd/output"
	"github.com/agentstation/boardstream/pkg/client"
	"github.com/agentstation/boardstream/pkg/errors"
	"github.com/agentstation/boardstream/pkg/events"
	"github.com/agentstation/boardstream/pkg/logging"
)

// NewCommand creates the listen command.
func NewCommand(app application.Application, defaults cmdutil.ConnectionDefaults) *cobra.Command {
	var (
		types     []string
		reconnect int
		cfg       = client.DefaultConfig()
	)

	cmd := &cobra.Command{
		Use:     "listen",
		GroupID: "core",
		Short:   "Subscribe to the event stream and print events",
		Long: `Listen opens the event stream the way the dashboard does: it reconnects
with exponential backoff, treats a silent stream as dead and resumes with
Last-Event-ID. Events are printed one per line, or as JSON/YAML documents
with --format.`,
		Example: `  # Everything, signed locally with BOARDSTREAM_JWT_SECRET
  boardstream listen

  # Only task status changes, as JSON lines
  boardstream listen --type task.status_changed -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.MaxReconnectAttempts = reconnect
			return run(cmd, app, conn(cmd), cfg, types)
		},
	}

	cmdutil.AddConnectionFlags(cmd, defaults)
	cmd.Flags().StringSliceVar(&types, "type", []string{events.Wildcard}, "Event types to print (default: all)")
	cmd.Flags().IntVar(&reconnect, "max-reconnects", cfg.MaxReconnectAttempts, "Consecutive failed reconnects before giving up")
	cmd.Flags().DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval, "Liveness check interval; twice this without frames forces a reconnect")
	cmd.Flags().DurationVar(&cfg.ReconnectMaxDelay, "max-delay", cfg.ReconnectMaxDelay, "Upper bound for the reconnect delay")

	return cmd
}

// conn reads the connection flags back from cmd.
func conn(cmd *cobra.Command) *cmdutil.ConnectionFlags {
	return &cmdutil.ConnectionFlags{
		URL:     cmdutil.MustGetString(cmd, "url"),
		Token:   cmdutil.MustGetString(cmd, "token"),
		Subject: cmdutil.MustGetString(cmd, "subject"),
		TTL:     cmdutil.MustGetDuration(cmd, "token-ttl"),
	}
}

func run(cmd *cobra.Command, app application.Application, flags *cmdutil.ConnectionFlags, cfg client.Config, types []string) error {
	logger := app.Logger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := flags.ResolveToken(app)
	if err != nil {
		return err
	}

	writer := output.NewEventWriter(cmd.OutOrStdout(), output.Format(app.OutputFormat()))
	var writeMu sync.Mutex

	gaveUp := make(chan struct{})
	var gaveUpOnce sync.Once

	ctrl := client.New(flags.Endpoint("events/stream"), token,
		client.WithConfig(cfg),
		client.WithLogger(logging.Component(logger, "client")),
		client.OnError(func(err error) {
			logger.Warn().Err(err).Msg("Stream error")
		}),
		client.OnStateChange(func(s client.State) {
			logger.Info().Str("state", string(s)).Msg("Stream state changed")
			if s == client.StateDisconnected && ctx.Err() == nil {
				gaveUpOnce.Do(func() { close(gaveUp) })
			}
		}),
	)

	for _, t := range types {
		ctrl.Subscribe(events.Type(t), func(ev events.Event) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			return writer.Write(ev)
		})
	}

	if err := ctrl.Connect(ctx); err != nil {
		if errors.IsAuthentication(err) {
			ctrl.Disconnect()
			fmt.Fprintf(cmd.ErrOrStderr(), "%s stream rejected: %v\n", emoji.Error, err)
			return err
		}
		logger.Warn().Err(err).Msg("Initial connect failed, retrying")
	}

	select {
	case <-ctx.Done():
		ctrl.Disconnect()
		return nil
	case <-gaveUp:
		status := ctrl.Status()
		fmt.Fprintf(cmd.ErrOrStderr(), "%s gave up reconnecting\n", emoji.Error)
		if status.LastError != nil {
			return fmt.Errorf("stream closed: %w", status.LastError)
		}
		return fmt.Errorf("stream closed")
	}
}
