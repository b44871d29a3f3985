// Package httpapi is the thin HTTP/WebSocket façade PulseBot's core
// exposes to external collaborators: a POST endpoint that appends a
// user_input row and a WebSocket endpoint that streams everything the
// agent broadcasts back to channel:http for a session.
//
// The façade itself is an external collaborator, not core domain logic,
// so it is built directly on net/http and gorilla/websocket rather than
// growing the core's dependency surface.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/m-mizutani/goerr/v2"

	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
	"github.com/timeplus-io/pulsebot/pkg/domain/model"
	"github.com/timeplus-io/pulsebot/pkg/domain/types"
	"github.com/timeplus-io/pulsebot/pkg/messagelog"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

const channelName = "http"

// Handler serves the /messages and /stream endpoints over a stream client.
type Handler struct {
	stream   interfaces.Client
	upgrader websocket.Upgrader
}

// New builds a Handler bound to stream.
func New(stream interfaces.Client) *Handler {
	return &Handler{
		stream: stream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Mux returns the routed http.Handler for the façade.
func (h *Handler) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /messages", h.handlePostMessage)
	mux.HandleFunc("GET /stream", h.handleStream)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type postMessageRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}

// handlePostMessage appends a user_input row targeted at the agent.
// session_id becomes the routing key a paired /stream connection
// subscribes on.
func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Text == "" {
		http.Error(w, "session_id and text are required", http.StatusBadRequest)
		return
	}

	msg := &model.Message{
		ID:          model.NewMessageID(),
		Timestamp:   time.Now().UTC(),
		Source:      "channel:" + channelName,
		Target:      model.TargetAgent,
		SessionID:   req.SessionID,
		MessageType: types.MessageTypeUserInput,
		Content:     map[string]any{"text": req.Text},
		UserID:      req.UserID,
		ChannelMetadata: map[string]any{
			"channel": channelName,
		},
		Priority: types.PriorityNormal,
	}

	if err := messagelog.Insert(r.Context(), h.stream, msg); err != nil {
		logging.From(r.Context()).Error("failed to record http message", "error", err)
		http.Error(w, "failed to record message", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"message_id": msg.ID})
}

// handleStream upgrades to a WebSocket and relays everything the agent
// broadcasts to channel:http for the requested session until the client
// disconnects or the server shuts down.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.From(r.Context()).Error("failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	iter, err := h.stream.Tail(ctx, "SELECT * FROM table("+messagelog.StreamName+") WHERE target = '"+model.TargetChannel(channelName)+"'", interfaces.SeekLatest())
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer iter.Close()

	for {
		row, ok, err := iter.Next(ctx)
		if err != nil || !ok {
			return
		}
		msg, err := messagelog.FromRow(row)
		if err != nil || msg.SessionID != sessionID || msg.Target != model.TargetChannel(channelName) {
			continue
		}
		if err := conn.WriteJSON(renderEvent(msg)); err != nil {
			return
		}
	}
}

func renderEvent(msg *model.Message) map[string]any {
	return map[string]any{
		"type":      string(msg.MessageType),
		"content":   msg.Content,
		"timestamp": msg.Timestamp,
	}
}

// Serve starts an http.Server with addr and graceful shutdown on ctx
// cancellation, returning once the server has fully stopped.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Default().Info("starting http façade", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- goerr.Wrap(err, "http façade failed")
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return goerr.Wrap(err, "failed to shut down http façade gracefully")
		}
		return nil
	}
}
