package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetline/realtime/config"
	"github.com/fleetline/realtime/internal/hub"
	"github.com/fleetline/realtime/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// WSHandler adapts websocket sessions to the hub lifecycle. It owns the
// read/write pumps and the wire envelope; everything event-shaped is handed
// to the lifecycle's dispatch table.
type WSHandler struct {
	lifecycle *hub.Lifecycle
	cfg       config.WSConfig
	log       *slog.Logger
}

func NewWSHandler(lifecycle *hub.Lifecycle, cfg config.WSConfig, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{lifecycle: lifecycle, cfg: cfg, log: log}
}

// session is one live websocket connection. Outbound frames go through a
// buffered channel so slow consumers never block the router; frames to a full
// buffer are dropped.
type session struct {
	id   string
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	cfg  config.WSConfig
	log  *slog.Logger
}

// Send implements hub.Sink.
func (s *session) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(hub.Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return errors.New("session closed")
	case s.out <- frame:
		return nil
	default:
		s.log.Warn("send buffer full, frame dropped", "conn_id", s.id, "event", event)
		return nil
	}
}

// Handle upgrades the request and runs the session until disconnect. Identity
// comes from query parameters, falling back to unverified token claims, then
// to a generated guest id.
func (h *WSHandler) Handle(c *gin.Context) {
	userID := c.Query("userId")
	role := c.Query("role")

	token := c.Query("token")
	if token == "" {
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if tokenUser, tokenRole := middleware.IdentityFromToken(token); tokenUser != "" {
		if userID == "" {
			userID = tokenUser
		}
		if role == "" {
			role = tokenRole
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "err", err)
		return
	}

	s := &session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
		cfg:  h.cfg,
		log:  h.log,
	}

	ctx := context.WithoutCancel(c.Request.Context())
	userID, role = h.lifecycle.Connect(ctx, s.id, userID, role, s)
	h.log.Info("session started", "conn_id", s.id, "user_id", userID, "role", role)

	go s.writePump()
	h.readPump(ctx, s)
}

// readPump consumes inbound frames until the connection dies for any reason
// (client close, read error, missed pongs). Teardown always runs through the
// same disconnect path.
func (h *WSHandler) readPump(ctx context.Context, s *session) {
	defer func() {
		h.lifecycle.Disconnect(ctx, s.id)
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(s.cfg.ReadLimit)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error", "conn_id", s.id, "err", err)
			}
			return
		}

		var env hub.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn("malformed frame", "conn_id", s.id, "err", err)
			continue
		}
		if env.Event == "" {
			continue
		}
		h.lifecycle.Dispatch(ctx, s.id, env.Event, env.Data)
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
