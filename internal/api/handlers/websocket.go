package handlers

import (
	"net/http"
	"strings"

	"github.com/dom/product-console/internal/api/middleware"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/websocket"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AuditStreamHandler upgrades admin connections to the live audit feed.
// Browsers cannot set headers on a websocket handshake, so the token comes
// from the token query parameter; a bearer header is accepted too.
type AuditStreamHandler struct {
	hub      *websocket.Hub
	verifier middleware.TokenVerifier
	upgrader ws.Upgrader
	lg       *zap.SugaredLogger
}

func NewAuditStreamHandler(hub *websocket.Hub, verifier middleware.TokenVerifier, allowedOrigin string, lg *zap.SugaredLogger) *AuditStreamHandler {
	return &AuditStreamHandler{
		hub:      hub,
		verifier: verifier,
		lg:       lg,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin.
				return origin == "" || strings.EqualFold(origin, allowedOrigin)
			},
		},
	}
}

func (h *AuditStreamHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
			token = parts[1]
		}
	}
	if token == "" {
		h.lg.Warnw("audit stream: missing token")
		writeError(w, http.StatusUnauthorized, "Access token required")
		return
	}

	identity, err := middleware.IdentityFromToken(h.verifier, token)
	if err != nil {
		h.lg.Warnw("audit stream: token rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if !identity.HasRole(domain.RoleAdmin) {
		h.lg.Warnw("audit stream: forbidden", "userId", identity.UserID, "role", identity.Role)
		writeError(w, http.StatusForbidden, "Insufficient permissions: requires role 'admin', current role '"+string(identity.Role)+"'")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.lg.Warnw("audit stream: upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, identity.UserID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
