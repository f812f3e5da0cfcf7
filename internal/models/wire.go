package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Outbound operation types, one JSON object per frame.
const (
	OpConnect          = "connect"
	OpGetCustomers     = "get_customers"
	OpGetMembers       = "get_members"
	OpGetNotifications = "get_notifications"
	OpChatMessage      = "chat_message"
	OpEditMessage      = "edit_message"
	OpDeleteMessage    = "delete_message"
	OpPinMessage       = "pin_message"
	OpReactToMessage   = "react_to_message"
	OpMarkRead         = "mark_notification_as_read"
	OpMarkAllRead      = "mark_all_notifications_as_read"
)

// Inbound event types pushed by the gateway.
const (
	EventError                = "error"
	EventConnectionAck        = "connection_established"
	EventChatMessage          = "chat_message"
	EventCustomers            = "customers"
	EventMembers              = "members"
	EventCustomerEntered      = "customer_entered"
	EventMemberStatus         = "member_status"
	EventNotification         = "notification"
	EventNotifications        = "notifications"
	EventMessageEdited        = "message_edited"
	EventMessageDeleted       = "message_deleted"
	EventMessagePinned        = "message_pinned"
	EventMessageReaction      = "message_reaction"
	EventMessageRead          = "message_read"
	EventNotificationRead     = "notification_read"
	EventAllNotificationsRead = "all_notifications_read"
)

// Close code for a failed room access check. 1000 stays websocket.CloseNormalClosure.
const CloseForbidden = 4003

type ConnectOp struct {
	Type       string `json:"type"`
	Role       Role   `json:"role"`
	BoutiqueID string `json:"boutique_id"`
	UserID     string `json:"user_id"`
}

// RosterOp covers get_customers and get_members.
type RosterOp struct {
	Type       string `json:"type"`
	BoutiqueID string `json:"boutique_id"`
}

type NotificationsOp struct {
	Type       string `json:"type"`
	BoutiqueID string `json:"boutique_id"`
}

type ChatMessageOp struct {
	Type       string  `json:"type"`
	Message    string  `json:"message"`
	CustomerID string  `json:"customer_id,omitempty"`
	BoutiqueID string  `json:"boutique_id"`
	ReplyTo    *string `json:"reply_to"`
}

type EditMessageOp struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	NewText   string `json:"new_text"`
}

// MessageOp covers delete_message, pin_message and react_to_message.
type MessageOp struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji,omitempty"`
}

type MarkReadOp struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
}

type MarkAllReadOp struct {
	Type string `json:"type"`
}

// RosterEntry is one member in a customers/members snapshot. The backend
// spells the presence flag both ways depending on the roster path, so both
// keys are decoded and Presence() picks whichever arrived.
type RosterEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
	Online   *bool  `json:"is_online,omitempty"`
}

func (e RosterEntry) Presence() bool {
	if e.Online != nil {
		return *e.Online
	}
	return e.IsOnline
}

type NotificationPayload struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	SenderName string `json:"sender_name"`
	Time       string `json:"time"`
	Read       bool   `json:"read"`
}

// ServerEvent is the tagged union of every gateway push. Only the fields
// relevant to Type are populated.
type ServerEvent struct {
	Type           string                `json:"type"`
	ID             string                `json:"id,omitempty"`
	Message        string                `json:"message,omitempty"`
	Code           int                   `json:"code,omitempty"`
	SenderID       string                `json:"sender_id,omitempty"`
	SenderName     string                `json:"sender_name,omitempty"`
	CustomerID     string                `json:"customer_id,omitempty"`
	CustomerName   string                `json:"customer_name,omitempty"`
	BoutiqueID     string                `json:"boutique_id,omitempty"`
	Time           string                `json:"time,omitempty"`
	IsEdited       bool                  `json:"is_edited,omitempty"`
	IsDeleted      bool                  `json:"is_deleted,omitempty"`
	ReplyTo        *string               `json:"reply_to,omitempty"`
	Customers      []RosterEntry         `json:"customers,omitempty"`
	Members        []RosterEntry         `json:"members,omitempty"`
	UserID         string                `json:"user_id,omitempty"`
	Name           string                `json:"name,omitempty"`
	IsOnline       bool                  `json:"isOnline,omitempty"`
	NotificationID string                `json:"notification_id,omitempty"`
	Read           bool                  `json:"read,omitempty"`
	MessageID      string                `json:"message_id,omitempty"`
	NewText        string                `json:"new_text,omitempty"`
	Emoji          string                `json:"emoji,omitempty"`
	Notifications  []NotificationPayload `json:"notifications,omitempty"`
}

// GatewayURL builds the connection URL for a room:
// ws(s)://<host>/ws/chat/<roomName>/?token=...&role=...&boutique_id=...
func GatewayURL(base, roomName, token string, role Role, shopID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("role", string(role))
	q.Set("boutique_id", shopID)
	return fmt.Sprintf("%s/ws/chat/%s/?%s", strings.TrimRight(base, "/"), url.PathEscape(roomName), q.Encode())
}
