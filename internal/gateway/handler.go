package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"marketchat/internal/auth"
	"marketchat/internal/metrics"
	"marketchat/internal/models"
	"marketchat/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Handler upgrades chat connections at /ws/chat/{room}/.
type Handler struct {
	authService *auth.Service
	registry    *Registry
	upgrader    websocket.Upgrader
}

func NewHandler(authService *auth.Service, registry *Registry) *Handler {
	return &Handler{
		authService: authService,
		registry:    registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	roomName := mux.Vars(r)["room"]

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	identity, err := h.authService.IdentityFromToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("upgrade failed: %v", err)
		return
	}

	// Access validation happens after the upgrade so the client observes
	// close code 4003 rather than a failed handshake.
	if !roomAccessible(roomName, identity) {
		logger.Info("user %s denied access to room %s", identity.UserID, roomName)
		metrics.ForbiddenCloses.Inc()
		deadline := time.Now().Add(writeWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(models.CloseForbidden, "access denied"), deadline)
		conn.Close()
		return
	}

	hub := h.registry.HubForRoom(roomName)
	client := NewClient(hub, conn, identity)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}

// HandleToken mints a development token for the CLI and local testing. The
// real deployment sits behind the platform's auth provider instead.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID     string      `json:"user_id"`
		Name       string      `json:"name"`
		Role       models.Role `json:"role"`
		BoutiqueID string      `json:"boutique_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || !req.Role.Valid() {
		http.Error(w, "user_id and a valid role are required", http.StatusBadRequest)
		return
	}

	token, err := h.authService.GenerateToken(auth.Identity{
		UserID: req.UserID,
		Name:   req.Name,
		Role:   req.Role,
		ShopID: req.BoutiqueID,
	})
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// roomAccessible checks the identity against the requested room: admins get
// their own admin room, merchants the room of the shop they own, customers
// any shop room.
func roomAccessible(roomName string, id auth.Identity) bool {
	switch id.Role {
	case models.RoleAdmin:
		return roomName == "admin_"+id.UserID
	case models.RoleMerchant:
		return id.ShopID != "" && roomName == "shop_"+id.ShopID
	case models.RoleCustomer:
		return strings.HasPrefix(roomName, "shop_") && roomName != "shop_"
	}
	return false
}
