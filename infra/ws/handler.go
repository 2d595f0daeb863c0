package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/battsim/core/sim"
	"github.com/kilianp07/battsim/infra/logger"
)

// DefaultPath is the WebSocket endpoint when Config.Path is empty.
const DefaultPath = "/ws"

// Config enables the WebSocket server when Addr is set.
type Config struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

// CommandHandler executes a command received from a client.
type CommandHandler func(ctx context.Context, cmd sim.Command) (sim.Result, error)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades connections and routes command envelopes to the
// simulator.
type Handler struct {
	hub     *Hub
	handle  CommandHandler
	timeout time.Duration
	log     logger.Logger
}

func NewHandler(hub *Hub, handle CommandHandler) *Handler {
	return &Handler{hub: hub, handle: handle, timeout: 5 * time.Second, log: logger.New("ws")}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()
	h.readPump(client)
}

func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnf("WebSocket read error: %v", err)
			}
			return
		}
		h.reply(c, h.handleMessage(msg))
	}
}

func (h *Handler) handleMessage(msg []byte) []byte {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return h.errorMessage("", "invalid message: "+err.Error())
	}
	if env.Type != TypeCommand {
		return h.errorMessage(env.RequestID, "unknown message type: "+env.Type)
	}
	var cmd sim.Command
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		return h.errorMessage(env.RequestID, "invalid command payload: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	res, err := h.handle(ctx, cmd)
	out := ResultPayload{Result: res}
	if out.Action == "" {
		out.Action = cmd.Action
	}
	if err != nil {
		out.Error = err.Error()
	}
	b, err := newEnvelope(TypeCommandResult, env.RequestID, out)
	if err != nil {
		return h.errorMessage(env.RequestID, err.Error())
	}
	return b
}

func (h *Handler) errorMessage(requestID, text string) []byte {
	b, _ := newEnvelope(TypeError, requestID, map[string]string{"message": text})
	return b
}

// reply runs on the read goroutine, which is the only one that unregisters c.
func (h *Handler) reply(c *Client, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.hub.dropped.Add(1)
	}
}

// Serve runs an HTTP server exposing h on cfg.Path until ctx is cancelled.
func Serve(ctx context.Context, cfg Config, h *Handler) error {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.hub.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			h.log.Errorf("ws server shutdown: %v", err)
		}
	}()
	h.log.Infof("serving websocket on %s%s", cfg.Addr, path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
