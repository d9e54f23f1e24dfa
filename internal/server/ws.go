package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WSGateway exposes the chat protocol over WebSocket for clients that
// cannot open a raw TCP stream. Each upgraded socket is wrapped in an
// adapter that presents the ordered byte-stream contract, so the codec and
// session lifecycle run over it unchanged.
type WSGateway struct {
	core     *Server
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewWSGateway builds the gateway's HTTP server with the health and
// upgrade endpoints.
func NewWSGateway(core *Server, cfg Config) *WSGateway {
	cfg = sanitizeConfig(cfg)
	policy := newOriginPolicy(cfg.AllowedOrigins)

	gw := &WSGateway{core: core}
	gw.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.HandleFunc("/ws", gw.handleUpgrade)

	gw.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return gw
}

// ListenAndServe starts the gateway and blocks until it exits.
func (gw *WSGateway) ListenAndServe() error {
	log.Printf("WebSocket gateway listening on %s", gw.srv.Addr)
	if err := gw.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server. Live chat sessions are owned by the core
// server and are closed by its Shutdown.
func (gw *WSGateway) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return gw.srv.Shutdown(ctx)
}

// Handler exposes the gateway mux so tests can mount it on an ephemeral
// port.
func (gw *WSGateway) Handler() http.Handler { return gw.srv.Handler }

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Parley server is running!")
}

func (gw *WSGateway) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	gw.core.handleStream(&wsStream{conn: conn}, conn.RemoteAddr().String())
}

// wsStream adapts a WebSocket connection to the ordered, reliable byte
// stream the codec expects. Frame boundaries on the WebSocket layer are
// irrelevant: reads concatenate message payloads, and every write carries
// one protocol frame as one binary message.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

func (w *wsStream) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, translateWSError(err)
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsStream) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsStream) Close() error {
	return w.conn.Close()
}

// translateWSError maps orderly WebSocket closes to io.EOF so the session
// sees the same end-of-stream outcome as on TCP.
func translateWSError(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return io.EOF
	}
	return err
}
