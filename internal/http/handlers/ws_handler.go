package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/auth"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/events"
	"github.com/adpilot/backend/internal/middleware"
	"github.com/adpilot/backend/internal/rbac"
)

// WSHub streams audit events to the websocket clients of each project.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	members     middleware.MemberLookup
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn // project id -> conns
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, members middleware.MemberLookup, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		members:     members,
		log:         log,
		connections: make(map[string][]*websocket.Conn),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamAudit, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	if event.ProjectID == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections[event.ProjectID] {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS authenticates with ?token= and subscribes to ?project_id=.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	claims, err := auth.ParseJWT(h.cfg.JWTSecret, conn.Query("token"))
	if err != nil {
		h.reject(conn, "invalid token")
		return
	}
	projectID, err := uuid.Parse(conn.Query("project_id"))
	if err != nil {
		h.reject(conn, "invalid project id")
		return
	}
	role, err := h.members.GetMemberRole(context.Background(), projectID, claims.UserID)
	if err != nil || !rbac.HasPermission(role, rbac.PermViewAudit) {
		h.reject(conn, "insufficient permissions")
		return
	}

	key := projectID.String()
	h.mu.Lock()
	h.connections[key] = append(h.connections[key], conn)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		conns := h.connections[key]
		for i, c := range conns {
			if c == conn {
				h.connections[key] = append(conns[:i], conns[i+1:]...)
				break
			}
		}
		if len(h.connections[key]) == 0 {
			delete(h.connections, key)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *WSHub) reject(conn *websocket.Conn, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	_ = conn.WriteMessage(websocket.TextMessage, data)
	conn.Close()
}
