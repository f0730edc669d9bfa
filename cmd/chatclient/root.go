package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/whisper/chat-client/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"host":                 "host",
	"scheme":               "scheme",
	"name":                 "name",
	"insecure-skip-verify": "insecure_skip_verify",
	"dial-timeout":         "dial_timeout",
	"write-timeout":        "write_timeout",
	"typing-delay":         "typing_delay",
	"notify-timeout":       "notify_timeout",
	"notify":               "notify",
	"nats-url":             "nats_url",
	"metrics-addr":         "metrics_addr",
	"log-file":             "log_file",
	"scrollback":           "scrollback",
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "chatclient [host]",
		Short: "Terminal client for a realtime chat room",
		Long: `chatclient connects to a chat server over a secure WebSocket at
wss://<host>/ws and lets you talk in its single room.

Type to compose, Enter to send, "/nick <name>" to change your name,
Ctrl-L to redraw and Ctrl-C to quit. When stdin is not a terminal every
line is sent as one message.

Configuration is read from --config, CHAT_CONFIG_FILE or .chatclient.yaml,
then CHAT_* environment variables (CHAT_HOST, CHAT_NAME, ...), then flags.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadViper(cmd.Flags(), cfgFile)
			if err != nil {
				return report(cmd, err)
			}
			if len(args) == 1 {
				v.Set("host", args[0])
			}
			cfg, err := config.Load(v)
			if err != nil {
				return report(cmd, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return report(cmd, run(ctx, cfg, os.Stdin, os.Stdout))
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .chatclient.yaml, can also use CHAT_CONFIG_FILE)")
	addClientFlags(root.Flags())

	root.AddCommand(newVersionCmd(), newAgentCmd(&cfgFile))
	return root
}

func addClientFlags(fs *pflag.FlagSet) {
	d := config.Default()
	fs.String("host", d.Host, "chat server host[:port]")
	fs.String("scheme", d.Scheme, `WebSocket scheme, "wss" or "ws"`)
	fs.StringP("name", "n", d.Name, "display name")
	fs.Bool("insecure-skip-verify", d.InsecureSkipVerify, "skip TLS certificate verification")
	fs.Duration("dial-timeout", d.DialTimeout, "connection timeout")
	fs.Duration("write-timeout", d.WriteTimeout, "timeout for a single frame write")
	fs.Duration("typing-delay", d.TypingDelay, "silence before the typing indicator stops")
	fs.Duration("notify-timeout", d.NotifyTimeout, "notification auto-dismiss delay")
	fs.Bool("notify", d.Notify, "show desktop notifications while unfocused")
	fs.String("nats-url", d.NATSURL, "also publish notifications to this NATS server")
	fs.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address")
	fs.String("log-file", d.LogFile, "write logs to this file")
	fs.Int("scrollback", d.Scrollback, "log lines kept for redraws")
}

// loadViper builds the config instance and binds every flag that exists on
// fs. Flags take precedence over the file and the environment.
func loadViper(fs *pflag.FlagSet, cfgFile string) (*viper.Viper, error) {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return v, nil
}

func report(cmd *cobra.Command, err error) error {
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "chatclient:", err)
	}
	return err
}

// setupLogging sends log output to path, or to fallback when path is empty.
// The returned closer is never nil.
func setupLogging(path string, fallback io.Writer) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if path == "" {
		log.SetOutput(fallback)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chatclient", version)
		},
	}
}
