package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/whisper/chat-client/internal/clock"
	"github.com/whisper/chat-client/internal/config"
	"github.com/whisper/chat-client/internal/messaging"
	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/notify"
	"github.com/whisper/chat-client/internal/session"
	"github.com/whisper/chat-client/internal/term"
	"github.com/whisper/chat-client/internal/ui"
	"github.com/whisper/chat-client/internal/ws"
)

// run connects, starts the session and blocks until ctx is cancelled, the
// user quits or the server closes the connection.
func run(ctx context.Context, cfg config.Config, stdin, stdout *os.File) error {
	interactive := term.IsTerminal(int(stdin.Fd())) && term.IsTerminal(int(stdout.Fd()))

	surface := ui.NewTerminal(stdout, cfg.Name, ui.TerminalConfig{
		Interactive: interactive,
		Scrollback:  cfg.Scrollback,
	})
	defer surface.Close()

	// In interactive mode log lines are printed above the prompt.
	var logOut io.Writer = os.Stderr
	if interactive {
		logOut = surface
	}
	logFile, err := setupLogging(cfg.LogFile, logOut)
	if err != nil {
		return err
	}
	defer logFile.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr)
		defer stopMetrics()
	}

	var notifiers notify.Multi
	if interactive {
		notifiers = append(notifiers, notify.NewTerminalNotifier(surface))
	}
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsClient, err := messaging.NewNATSClient(natsConfig)
		if err != nil {
			log.Printf("notify: NATS unavailable, continuing without it: %v", err)
		} else {
			defer natsClient.Close()
			notifiers = append(notifiers, notify.NewNATSNotifier(natsClient))
		}
	}

	conn, err := ws.Dial(ctx, cfg.WS())
	if err != nil {
		return err
	}
	defer conn.Close()

	sessConfig := sessionConfig(cfg)
	var notifier notify.Notifier
	if len(notifiers) > 0 {
		notifier = notifiers
	}
	sess := session.New(sessConfig, conn, surface, notifier, clock.Real())
	log.Printf("session: started id=%s endpoint=%s interactive=%v", sess.ID, conn.Endpoint(), interactive)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session: stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		if err := conn.Run(ctx, sess.Frame); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("ws: read loop ended: %v", err)
		}
		surface.AppendLog("-- disconnected")
	}()

	if interactive {
		fd := int(stdin.Fd())
		state, err := term.MakeCbreak(fd)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		defer term.Restore(fd, state)
		term.EnableFocusReporting(stdout)
		defer term.DisableFocusReporting(stdout)

		// The reader goroutine stays blocked on stdin after ctx ends; the
		// process exits right after run returns.
		go func() {
			editor := term.NewLineEditor(surface, sess)
			if err := editor.Run(term.NewReader(stdin)); err != nil {
				log.Printf("term: input: %v", err)
			}
			cancel()
		}()
	} else {
		go func() {
			if err := term.RunLines(stdin, cfg.Name, sess); err != nil {
				log.Printf("term: input: %v", err)
			}
		}()
	}

	<-ctx.Done()
	conn.Close()
	wg.Wait()
	return nil
}

// sessionConfig derives the session settings from cfg. The notify setting is
// the user's standing answer to the permission question, so the session
// starts with permission already settled.
func sessionConfig(cfg config.Config) session.Config {
	sessConfig := session.DefaultConfig()
	sessConfig.Name = cfg.Name
	sessConfig.Typing.Delay = cfg.TypingDelay
	sessConfig.Notify.Timeout = cfg.NotifyTimeout
	if cfg.Notify {
		sessConfig.Notify.Permission = notify.PermissionGranted
	} else {
		sessConfig.Notify.Permission = notify.PermissionDenied
	}
	return sessConfig
}

// serveMetrics exposes /metrics on addr and returns a shutdown function.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("metrics: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics: server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
