// Package server exposes searchflow sessions over a websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elastiflow/searchflow"
	"github.com/elastiflow/searchflow/gateway"
)

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	outboxSize      = 32
)

// Message types exchanged on the websocket.
const (
	TypeInput   = "input"
	TypeLoad    = "load"
	TypeResults = "results"
	TypeBusy    = "busy"
	TypeError   = "error"
)

// ClientMessage is sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`
	Term string `json:"term,omitempty"`
}

// ServerMessage is pushed to the browser.
type ServerMessage struct {
	Type    string           `json:"type"`
	Records []gateway.Record `json:"records,omitempty"`
	Busy    *bool            `json:"busy,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Handler serves one searchflow session per websocket connection.
type Handler struct {
	Characters gateway.Source[gateway.Record]
	Planets    gateway.Source[gateway.Record]
	Params     searchflow.Params
	Logger     *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	params := h.Params
	params.Logger = h.logger()
	session := searchflow.New(searchflow.NewProps(h.Characters, h.Planets, params)).Open(ctx)
	defer session.Teardown()
	logger := h.logger().With(slog.String("session_id", session.ID()))
	logger.Info("websocket session started", slog.String("remote", r.RemoteAddr))

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	c := &client{conn: conn, session: session, logger: logger, outbox: make(chan ServerMessage, outboxSize)}
	go c.writeLoop(ctx, cancel)
	go c.forwardBusy(ctx)
	errs := make(chan error, 1)
	go c.searchLoop(ctx, session.SearchResults(ctx, errs), errs)
	c.readLoop(ctx)
	logger.Info("websocket session ended")
}

type client struct {
	conn    *websocket.Conn
	session *searchflow.Session[gateway.Record]
	logger  *slog.Logger
	outbox  chan ServerMessage
}

func (c *client) send(ctx context.Context, msg ServerMessage) {
	select {
	case c.outbox <- msg:
	case <-ctx.Done():
	}
}

// writeLoop is the only writer on the connection.
func (c *client) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.outbox:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.send(ctx, ServerMessage{Type: TypeError, Error: "malformed message"})
			continue
		}
		switch msg.Type {
		case TypeInput:
			c.session.OnInputChanged(msg.Term)
		case TypeLoad:
			go c.load(ctx)
		default:
			c.send(ctx, ServerMessage{Type: TypeError, Error: "unknown message type " + msg.Type})
		}
	}
}

// searchLoop forwards search results; a failed search is reported and a fresh
// pipeline takes its place.
func (c *client) searchLoop(ctx context.Context, results <-chan []gateway.Record, errs chan error) {
	for {
		for records := range results {
			c.send(ctx, ServerMessage{Type: TypeResults, Records: records})
		}
		select {
		case err := <-errs:
			c.logger.Warn("search failed", slog.Any("error", err))
			c.send(ctx, ServerMessage{Type: TypeError, Error: err.Error()})
		default:
			return
		}
		if ctx.Err() != nil {
			return
		}
		results = c.session.SearchResults(ctx, errs)
	}
}

func (c *client) load(ctx context.Context) {
	for r := range c.session.TriggerCombinedLoad(ctx) {
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) {
				return
			}
			c.send(ctx, ServerMessage{Type: TypeError, Error: r.Err.Error()})
			continue
		}
		c.send(ctx, ServerMessage{Type: TypeLoad, Records: r.Records})
	}
}

func (c *client) forwardBusy(ctx context.Context) {
	changes, cancel := c.session.BusyChanges()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case busy, ok := <-changes:
			if !ok {
				return
			}
			c.send(ctx, ServerMessage{Type: TypeBusy, Busy: &busy})
		}
	}
}

// NewMux routes /ws to h.
func NewMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	return mux
}

// ListenAndServe serves h on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(h),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		h.logger().Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
