package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/bizaudit/internal/common"
	"github.com/ternarybob/bizaudit/internal/interfaces"
	"github.com/ternarybob/bizaudit/internal/services/viewer"
)

const (
	wsWriteTimeout = 10 * time.Second

	// MessageTypeView carries a viewer.View payload
	MessageTypeView = "audit_view"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the frame sent to websocket clients
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams viewer states for one audit per connection
type WebSocketHandler struct {
	watcher  ViewWatcher
	logger   arbor.ILogger
	throttle time.Duration
}

// NewWebSocketHandler creates the stream handler. Progress frames are limited
// to one per config.ProgressThrottle; a zero or invalid interval disables
// throttling.
func NewWebSocketHandler(watcher ViewWatcher, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		watcher: watcher,
		logger:  logger,
	}

	if config != nil && config.ProgressThrottle != "" {
		if d, err := time.ParseDuration(config.ProgressThrottle); err == nil && d > 0 {
			h.throttle = d
			logger.Debug().Str("interval", config.ProgressThrottle).Msg("Progress throttler initialized for audit streams")
		} else {
			logger.Warn().Str("interval", config.ProgressThrottle).Msg("Invalid progress throttle interval - throttler disabled")
		}
	}

	return h
}

// HandleAuditStream upgrades the connection and sends a frame for every
// viewer state change of the audit. The server closes the stream after
// ReportReady or deletion.
// GET /ws/audits/{id}
func (h *WebSocketHandler) HandleAuditStream(w http.ResponseWriter, r *http.Request) {
	id := PathSegment(r, 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	views, err := h.watcher.Watch(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrAuditNotFound) {
			WriteError(w, http.StatusNotFound, "Audit not found")
			return
		}
		h.logger.Error().Err(err).Str("audit_id", id).Msg("Failed to watch audit")
		WriteError(w, http.StatusInternalServerError, "Failed to watch audit")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("audit_id", id).Msg("WebSocket client connected")

	// Read messages from client so close frames are processed
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Warn().Err(err).Str("audit_id", id).Msg("WebSocket error")
				}
				return
			}
		}
	}()

	if err := h.stream(ctx, conn, views); err != nil {
		h.logger.Debug().Err(err).Str("audit_id", id).Msg("WebSocket stream ended")
		return
	}

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "audit settled"))
	h.logger.Debug().Str("audit_id", id).Msg("WebSocket client disconnected")
}

// stream forwards views until the channel closes. Loader frames beyond the
// throttle rate are held and the latest one is sent once the interval passes;
// settled frames are always sent immediately.
func (h *WebSocketHandler) stream(ctx context.Context, conn *websocket.Conn, views <-chan viewer.View) error {
	var limiter *rate.Limiter
	if h.throttle > 0 {
		limiter = rate.NewLimiter(rate.Every(h.throttle), 1)
	}

	var (
		held  *viewer.View
		flush <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-flush:
			flush = nil
			if held != nil {
				v := *held
				held = nil
				limiter.Allow()
				if err := h.send(conn, v); err != nil {
					return err
				}
			}

		case v, ok := <-views:
			if !ok {
				return ctx.Err()
			}
			if !v.Settled() && limiter != nil && !limiter.Allow() {
				held = &v
				if flush == nil {
					flush = time.After(h.throttle)
				}
				continue
			}
			held = nil
			if err := h.send(conn, v); err != nil {
				return err
			}
		}
	}
}

func (h *WebSocketHandler) send(conn *websocket.Conn, v viewer.View) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(WSMessage{Type: MessageTypeView, Payload: v})
}
