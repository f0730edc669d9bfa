// Package ws owns the chat client's single WebSocket connection. It dials
// {scheme}://{host}/ws once, writes outbound frames under a write mutex and
// delivers inbound text frames to a callback in arrival order. There is no
// reconnect, backoff or heartbeat: once the connection fails, sends return
// errors for the rest of the process lifetime.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/whisper/chat-client/internal/metrics"
	"github.com/whisper/chat-client/internal/protocol"
)

// Path is the chat endpoint path on the server host.
const Path = "/ws"

// MaxMessageBytes is the default limit for one inbound message.
const MaxMessageBytes = 64 << 10

// ErrClosed is returned by Send once the connection has been closed.
var ErrClosed = errors.New("ws: connection closed")

// Config holds tunable parameters for the client connection.
type Config struct {
	Scheme       string        // "wss" (default) or "ws"
	Host         string        // host or host:port of the chat server
	DialTimeout  time.Duration // timeout for TCP, TLS and upgrade
	WriteTimeout time.Duration // timeout for a single frame write
	TLSConfig    *tls.Config   // nil uses the system roots
	MaxMessage   int64         // larger inbound messages are dropped
}

// DefaultConfig returns a Config with secure transport and sensible timeouts.
func DefaultConfig() Config {
	return Config{
		Scheme:       "wss",
		DialTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		MaxMessage:   MaxMessageBytes,
	}
}

// Endpoint builds the WebSocket URL for host. host may also be a full URL, in
// which case only its host part is used.
func Endpoint(scheme, host string) (string, error) {
	if scheme == "" {
		scheme = "wss"
	}
	if scheme != "wss" && scheme != "ws" {
		return "", fmt.Errorf("ws: unsupported scheme %q", scheme)
	}

	host = strings.TrimSpace(host)
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("ws: invalid host %q: %w", host, err)
		}
		host = u.Host
	}
	if host == "" {
		return "", fmt.Errorf("ws: empty host")
	}
	if strings.ContainsAny(host, "/?#@ ") {
		return "", fmt.Errorf("ws: invalid host %q", host)
	}

	u := url.URL{Scheme: scheme, Host: host, Path: Path}
	return u.String(), nil
}

// Conn is the client side of the chat WebSocket.
type Conn struct {
	endpoint     string
	conn         net.Conn  // underlying TCP/TLS connection
	reader       io.Reader // conn, or the handshake reader holding buffered bytes
	writeTimeout time.Duration
	maxMessage   int64
	writeMu      sync.Mutex // serializes writes to this connection
	closed       atomic.Bool
	closeOnce    sync.Once
	done         chan struct{}
}

// Dial opens the connection. It is called once per process.
func Dial(ctx context.Context, config Config) (*Conn, error) {
	endpoint, err := Endpoint(config.Scheme, config.Host)
	if err != nil {
		return nil, err
	}

	dialer := ws.Dialer{
		Timeout:   config.DialTimeout,
		TLSConfig: config.TLSConfig,
	}

	start := time.Now()
	conn, br, _, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", endpoint, err)
	}

	// The server may have sent frames right behind the handshake response;
	// those bytes sit in br and must be read before the raw connection.
	var reader io.Reader = conn
	if br != nil {
		reader = br
	}

	maxMessage := config.MaxMessage
	if maxMessage <= 0 {
		maxMessage = MaxMessageBytes
	}

	metrics.ConnectionUp.Set(1)
	log.Printf("ws: connected to %s in %s", endpoint, time.Since(start).Round(time.Millisecond))

	return &Conn{
		endpoint:     endpoint,
		conn:         conn,
		reader:       reader,
		writeTimeout: config.WriteTimeout,
		maxMessage:   maxMessage,
		done:         make(chan struct{}),
	}, nil
}

// Endpoint returns the URL the connection was dialed with.
func (c *Conn) Endpoint() string {
	return c.endpoint
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send encodes msg and writes it as one text frame. Failures are returned to
// the caller and never retried.
func (c *Conn) Send(msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if err := c.write(data); err != nil {
		metrics.MessagesSentTotal.WithLabelValues(msg.Type(), "error").Inc()
		if errors.Is(err, ErrClosed) {
			return err
		}
		return fmt.Errorf("ws: send %s: %w", msg.Type(), err)
	}
	metrics.MessagesSentTotal.WithLabelValues(msg.Type(), "ok").Inc()
	return nil
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteClientMessage(c.conn, ws.OpText, data)
}

// Run reads frames until the connection ends and calls onFrame once per text
// frame, in arrival order. Ping frames are answered; binary frames are
// discarded. Run returns nil when the server closes the connection or the
// connection is closed locally, ctx.Err() when ctx is cancelled, and the read
// error otherwise. In every case the connection is closed on return.
func (c *Conn) Run(ctx context.Context, onFrame func(data []byte)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		case <-c.done:
		}
	}()

	rd := &wsutil.Reader{
		Source:         c.reader,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return c.readErr(ctx, err)
		}

		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, rd); err != nil {
				return c.readErr(ctx, err)
			}
			continue
		}

		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return c.readErr(ctx, err)
			}
			continue
		}

		if hdr.Length > c.maxMessage {
			if err := c.drop(rd, 0); err != nil {
				return c.readErr(ctx, err)
			}
			continue
		}

		// Fragmented messages only reveal their size while being read.
		data, err := io.ReadAll(io.LimitReader(rd, c.maxMessage+1))
		if err != nil {
			return c.readErr(ctx, err)
		}
		if int64(len(data)) > c.maxMessage {
			if err := c.drop(rd, int64(len(data))); err != nil {
				return c.readErr(ctx, err)
			}
			continue
		}
		onFrame(data)
	}
}

// drop discards the rest of an oversized message of which read bytes were
// already consumed.
func (c *Conn) drop(rd io.Reader, read int64) error {
	n, err := io.Copy(io.Discard, rd)
	metrics.FramesTotal.WithLabelValues("oversized").Inc()
	log.Printf("ws: dropped %d-byte message (limit %d)", read+n, c.maxMessage)
	return err
}

// handleControl answers ping and close frames. The write mutex keeps control
// replies from interleaving with application frames.
func (c *Conn) handleControl(h ws.Header, r io.Reader) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.ControlFrameHandler(c.conn, ws.StateClientSide)(h, r)
}

// readErr classifies a read loop failure and closes the connection.
func (c *Conn) readErr(ctx context.Context, err error) error {
	localClose := c.closed.Load()
	c.Close()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if localClose {
		return nil
	}

	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		log.Printf("ws: server closed connection code=%d reason=%q", closed.Code, closed.Reason)
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		log.Printf("ws: connection to %s lost: %v", c.endpoint, err)
		return nil
	}
	return fmt.Errorf("ws: read: %w", err)
}

// Close sends a normal-closure frame and closes the connection. It is safe to
// call multiple times.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.closed.Store(true)
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = ws.WriteFrame(c.conn, ws.MaskFrameInPlace(ws.NewCloseFrame(body)))
		c.writeMu.Unlock()

		err = c.conn.Close()
		close(c.done)
		metrics.ConnectionUp.Set(0)
	})
	return err
}
