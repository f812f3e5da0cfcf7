package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketchat/internal/metrics"
	"marketchat/internal/models"
	"marketchat/pkg/logger"

	"github.com/google/uuid"
)

// clientOp is a decoded client frame plus the sender it came from.
type clientOp struct {
	client *Client
	frame  opFrame
}

type opFrame struct {
	Type           string      `json:"type"`
	Role           models.Role `json:"role"`
	UserID         string      `json:"user_id"`
	BoutiqueID     string      `json:"boutique_id"`
	Message        string      `json:"message"`
	CustomerID     string      `json:"customer_id"`
	ReplyTo        *string     `json:"reply_to"`
	MessageID      string      `json:"message_id"`
	NewText        string      `json:"new_text"`
	Emoji          string      `json:"emoji"`
	NotificationID string      `json:"notification_id"`
}

type storedMessage struct {
	event models.ServerEvent
}

// Hub owns one room: its live clients, roster, message log and per-user
// notifications. All state is touched only from the Run loop, no locks.
type Hub struct {
	roomName   string
	kind       models.RoomKind
	boutiqueID string

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	ops        chan clientOp
	shutdown   chan struct{}

	roster        map[string]*rosterMember
	messages      []*storedMessage
	notifications map[string][]models.NotificationPayload
	now           func() time.Time
}

type rosterMember struct {
	id     string
	name   string
	role   models.Role
	online bool
}

func NewHub(roomName string) *Hub {
	kind := models.RoomKindShop
	boutiqueID := strings.TrimPrefix(roomName, "shop_")
	if strings.HasPrefix(roomName, "admin_") {
		kind = models.RoomKindAdmin
		boutiqueID = ""
	}

	return &Hub{
		roomName:      roomName,
		kind:          kind,
		boutiqueID:    boutiqueID,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		ops:           make(chan clientOp),
		shutdown:      make(chan struct{}),
		roster:        make(map[string]*rosterMember),
		notifications: make(map[string][]models.NotificationPayload),
		now:           time.Now,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			for client := range h.clients {
				close(client.send)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			metrics.ActiveConnections.Inc()
			logger.Info("user %s joined room %s", client.identity.UserID, h.roomName)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.ActiveConnections.Dec()
				h.setPresence(client, false)
				logger.Info("user %s left room %s", client.identity.UserID, h.roomName)
			}

		case op := <-h.ops:
			metrics.InboundOps.WithLabelValues(op.frame.Type).Inc()
			h.handleOp(op.client, op.frame)
		}
	}
}

func (h *Hub) Shutdown() {
	select {
	case h.shutdown <- struct{}{}:
	default:
	}
}

func (h *Hub) handleOp(c *Client, f opFrame) {
	switch f.Type {
	case models.OpConnect:
		h.handleConnect(c)

	case models.OpGetCustomers:
		h.sendRoster(c, models.EventCustomers, models.RoleCustomer)

	case models.OpGetMembers:
		want := models.RoleMerchant
		if h.kind == models.RoomKindAdmin {
			want = models.RoleAdmin
		}
		h.sendRoster(c, models.EventMembers, want)

	case models.OpGetNotifications:
		h.sendDirect(c, models.ServerEvent{
			Type:          models.EventNotifications,
			Notifications: h.notifications[c.identity.UserID],
		})

	case models.OpChatMessage:
		h.handleChatMessage(c, f)

	case models.OpEditMessage:
		for _, m := range h.messages {
			if m.event.ID == f.MessageID && m.event.SenderID == c.identity.UserID {
				m.event.Message = f.NewText
				m.event.IsEdited = true
				h.broadcast(models.ServerEvent{Type: models.EventMessageEdited, MessageID: f.MessageID, NewText: f.NewText})
			}
		}

	case models.OpDeleteMessage:
		for _, m := range h.messages {
			if m.event.ID == f.MessageID && m.event.SenderID == c.identity.UserID {
				m.event.IsDeleted = true
				h.broadcast(models.ServerEvent{Type: models.EventMessageDeleted, MessageID: f.MessageID})
			}
		}

	case models.OpPinMessage:
		h.broadcast(models.ServerEvent{Type: models.EventMessagePinned, MessageID: f.MessageID})

	case models.OpReactToMessage:
		h.broadcast(models.ServerEvent{
			Type:       models.EventMessageReaction,
			MessageID:  f.MessageID,
			Emoji:      f.Emoji,
			SenderName: c.identity.Name,
		})

	case models.OpMarkRead:
		list := h.notifications[c.identity.UserID]
		for i := range list {
			if list[i].ID == f.NotificationID {
				list[i].Read = true
			}
		}
		h.sendDirect(c, models.ServerEvent{Type: models.EventNotificationRead, NotificationID: f.NotificationID})

	case models.OpMarkAllRead:
		list := h.notifications[c.identity.UserID]
		for i := range list {
			list[i].Read = true
		}
		h.sendDirect(c, models.ServerEvent{Type: models.EventAllNotificationsRead})

	default:
		h.sendDirect(c, models.ServerEvent{
			Type:    models.EventError,
			Message: fmt.Sprintf("unknown operation: %s", f.Type),
			Code:    4000,
		})
	}
}

func (h *Hub) handleConnect(c *Client) {
	id := c.identity
	member, ok := h.roster[id.UserID]
	if !ok {
		member = &rosterMember{id: id.UserID, name: id.Name, role: id.Role}
		h.roster[id.UserID] = member
	}
	member.online = true

	h.sendDirect(c, models.ServerEvent{Type: models.EventConnectionAck, Message: "connection established"})
	h.broadcast(models.ServerEvent{Type: models.EventMemberStatus, UserID: id.UserID, Name: id.Name, IsOnline: true})

	if id.Role == models.RoleCustomer {
		h.broadcast(models.ServerEvent{Type: models.EventCustomerEntered, CustomerID: id.UserID, CustomerName: id.Name})
		h.pushNotification(fmt.Sprintf("%s has entered your boutique", id.Name), id.Name, id.UserID)
	}
}

func (h *Hub) handleChatMessage(c *Client, f opFrame) {
	if h.kind == models.RoomKindShop && f.BoutiqueID != h.boutiqueID {
		h.sendDirect(c, models.ServerEvent{
			Type:    models.EventError,
			Message: "message sent to the wrong boutique",
			Code:    4000,
		})
		return
	}

	// Merchants address a customer explicitly; a customer's own messages are
	// attributed to them.
	customerID := f.CustomerID
	if c.identity.Role == models.RoleCustomer {
		customerID = c.identity.UserID
	}

	ev := models.ServerEvent{
		Type:       models.EventChatMessage,
		ID:         uuid.NewString(),
		Message:    f.Message,
		SenderID:   c.identity.UserID,
		SenderName: c.identity.Name,
		CustomerID: customerID,
		BoutiqueID: f.BoutiqueID,
		ReplyTo:    f.ReplyTo,
		Time:       h.now().Format(time.RFC3339),
	}
	h.messages = append(h.messages, &storedMessage{event: ev})
	h.broadcast(ev)

	preview := f.Message
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}
	h.pushNotification(fmt.Sprintf("New message from %s: %s", c.identity.Name, preview), c.identity.Name, c.identity.UserID)
}

// pushNotification stores a notification for every roster member except the
// sender and fans the event out to the room.
func (h *Hub) pushNotification(message, senderName, senderID string) {
	n := models.NotificationPayload{
		ID:         uuid.NewString(),
		Message:    message,
		SenderName: senderName,
		Time:       h.now().Format(time.RFC3339),
	}
	for id := range h.roster {
		if id != senderID {
			h.notifications[id] = append(h.notifications[id], n)
		}
	}
	h.broadcast(models.ServerEvent{
		Type:           models.EventNotification,
		NotificationID: n.ID,
		Message:        n.Message,
		SenderName:     n.SenderName,
		Time:           n.Time,
	})
}

func (h *Hub) sendRoster(c *Client, eventType string, want models.Role) {
	entries := make([]models.RosterEntry, 0, len(h.roster))
	for _, m := range h.roster {
		if m.role != want {
			continue
		}
		entries = append(entries, models.RosterEntry{ID: m.id, Name: m.name, IsOnline: m.online})
	}

	ev := models.ServerEvent{Type: eventType}
	if eventType == models.EventCustomers {
		ev.Customers = entries
	} else {
		ev.Members = entries
	}
	h.sendDirect(c, ev)
}

func (h *Hub) setPresence(c *Client, online bool) {
	member, ok := h.roster[c.identity.UserID]
	if !ok {
		return
	}
	member.online = online
	h.broadcast(models.ServerEvent{
		Type:     models.EventMemberStatus,
		UserID:   member.id,
		Name:     member.name,
		IsOnline: online,
	})
}

func (h *Hub) broadcast(ev models.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal event: %v", err)
		return
	}
	metrics.BroadcastFrames.Inc()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

func (h *Hub) sendDirect(c *Client, ev models.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("marshal event: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Registry hands out one running hub per room name.
type Registry struct {
	mu   sync.Mutex
	hubs map[string]*Hub
}

func NewRegistry() *Registry {
	return &Registry{hubs: make(map[string]*Hub)}
}

func (r *Registry) HubForRoom(roomName string) *Hub {
	r.mu.Lock()
	defer r.mu.Unlock()

	hub, exists := r.hubs[roomName]
	if !exists {
		hub = NewHub(roomName)
		r.hubs[roomName] = hub
		go hub.Run()
	}
	return hub
}

func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, hub := range r.hubs {
		hub.Shutdown()
		delete(r.hubs, name)
	}
}
