// Package wstest runs TLS chat servers speaking gobwas/ws for tests.
package wstest

import (
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	chatws "github.com/whisper/chat-client/internal/ws"
)

// NewServer starts a TLS server that upgrades requests on /ws and hands each
// connection to handler. The returned Config dials it with a trusted
// certificate.
func NewServer(t *testing.T, handler func(conn net.Conn)) (*httptest.Server, chatws.Config) {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != chatws.Path {
			http.NotFound(w, r)
			return
		}
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			t.Logf("wstest: upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	config := chatws.DefaultConfig()
	config.Host = strings.TrimPrefix(srv.URL, "https://")
	config.TLSConfig = &tls.Config{RootCAs: pool}
	return srv, config
}

// WriteText sends one text frame from the server side.
func WriteText(conn net.Conn, data string) error {
	return wsutil.WriteServerText(conn, []byte(data))
}

// ReadText reads one text frame sent by the client.
func ReadText(conn net.Conn) (string, error) {
	data, err := wsutil.ReadClientText(conn)
	return string(data), err
}
