// Package livereload tells connected browsers to reload after a destination
// file has been rewritten. It speaks the command subset of the LiveReload
// protocol that browser extensions understand (hello and reload) and also
// serves a small client script for pages without an extension.
package livereload

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/injector/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	protocol = "http://livereload.com/protocols/official-7"
)

// DefaultAddr is the port LiveReload browser extensions connect to.
const DefaultAddr = ":35729"

// Message is a LiveReload protocol command.
type Message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

// Hub fans reload notifications out to every connected browser.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	origins    []string
	logger     logging.Logger
	mu         sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns sets the browser origins allowed to connect, as
// host patterns ("localhost:*", "*.example.test"). Requests without an
// Origin header are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// NewHub creates a hub. A nil logger discards logs.
func NewHub(logger logging.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 16),
		origins:    []string{"localhost:*", "127.0.0.1:*"},
		logger:     logger.WithComponent("livereload"),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client connected", "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug(ctx, "Client disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow client, drop it.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify asks every browser to reload each path. liveCSS is always set so
// extensions can swap stylesheets in place. Notify never blocks: when the
// broadcast queue is full, because Run is not draining it, the reload is
// dropped.
func (h *Hub) Notify(ctx context.Context, paths ...string) {
	for _, p := range paths {
		msg, err := json.Marshal(Message{Command: "reload", Path: p, LiveCSS: true})
		if err != nil {
			h.logger.Error(ctx, err, "Cannot encode reload message")
			continue
		}

		select {
		case h.broadcast <- msg:
			h.logger.Info(ctx, "Reload sent", "path", p, "clients", h.Clients())
		default:
			h.logger.Warn(ctx, nil, "Reload queue full, dropping reload", "path", p)
		}
	}
}

// Handler returns the HTTP handler: websocket connections on /livereload
// and the client script on /livereload.js.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/livereload", h.serveWebSocket)
	mux.HandleFunc("/livereload.js", serveScript)

	return mux
}

func (h *Hub) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &client{conn: conn, send: make(chan []byte, 16)}

	hello, _ := json.Marshal(Message{
		Command:    "hello",
		Protocols:  []string{protocol},
		ServerName: "injector",
	})
	c.send <- hello

	ctx := context.WithoutCancel(r.Context())
	go h.writePump(ctx, c)

	select {
	case h.register <- c:
	case <-r.Context().Done():
		close(c.send)
		return
	}

	h.readPump(ctx, c)
}

// readPump discards client messages until the connection closes.
func (h *Hub) readPump(ctx context.Context, c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-time.After(writeWait):
		}
		c.conn.CloseNow()
	}()

	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.logger.Debug(ctx, "WebSocket read ended", "error", err.Error())
			}
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "WebSocket write failed", "error", err.Error())
				c.conn.CloseNow()
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.conn.CloseNow()
				return
			}
		}
	}
}

// ListenAndServe runs the hub and an HTTP server on addr until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return h.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (h *Hub) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go h.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info(ctx, "Live reload listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

const script = `(function () {
  var url = (location.protocol === "https:" ? "wss://" : "ws://") +
    (document.currentScript ? new URL(document.currentScript.src).host : location.hostname + ":35729") +
    "/livereload";
  var ws = new WebSocket(url);
  ws.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.command === "reload") { location.reload(); }
  };
})();
`

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	_, _ = w.Write([]byte(script))
}
