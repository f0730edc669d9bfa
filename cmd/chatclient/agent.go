package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/messaging"
	"github.com/whisper/chat-client/internal/notify"
)

// newAgentCmd returns the desktop notification agent. It subscribes to the
// notifications published by clients started with --nats-url and shows them
// on its own terminal.
func newAgentCmd(cfgFile *string) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Show notifications published over NATS by chat clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadViper(cmd.Flags(), *cfgFile)
			if err != nil {
				return report(cmd, err)
			}
			natsConfig := messaging.DefaultNATSConfig()
			if url := v.GetString("nats_url"); url != "" {
				natsConfig.URL = url
			}
			natsConfig.Name = "chatclient-agent"

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return report(cmd, runAgent(ctx, natsConfig, sessionID, cmd.OutOrStdout(), clock.Real()))
		},
	}

	cmd.Flags().String("nats-url", "", "NATS server to subscribe to (default nats://127.0.0.1:4222)")
	cmd.Flags().StringVar(&sessionID, "session", "*", "only show notifications of this session id")
	return cmd
}

// runAgent shows notifications published for sessionID ("*" for every
// session) until ctx is cancelled. Each one is closed after its timeout_ms.
func runAgent(ctx context.Context, natsConfig messaging.NATSConfig, sessionID string, out io.Writer, clk clock.Clock) error {
	client, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	agent := notify.NewAgent(notify.NewConsoleDisplay(out), clk)
	defer agent.Close()

	err = client.SubscribeNotifications(sessionID, func(data []byte) {
		if err := agent.Handle(data); err != nil {
			log.Printf("agent: %v", err)
		}
	})
	if err != nil {
		return err
	}
	if err := client.Flush(); err != nil {
		return err
	}
	log.Printf("agent: listening on %s", messaging.NotifySubject(sessionID))

	<-ctx.Done()
	return client.UnsubscribeNotifications(sessionID)
}
