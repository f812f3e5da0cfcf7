package session

import (
	"fmt"
	"strings"
	"time"

	"marketchat/internal/models"
	"marketchat/pkg/logger"
)

// PromoCodeToken marks a message as an early-payment promotion offer.
const PromoCodeToken = "EARLY10"

// State holds the three client-local collections the reducer operates on.
type State struct {
	Messages      []models.ChatMessage
	Members       []models.Member
	Notifications []models.Notification
}

// ReduceContext carries the room context a reduction happens under.
type ReduceContext struct {
	ShopID     string // active room's shop id, empty in admin rooms
	ActivePeer string // fallback peer attribution for merchant-sent frames
	Now        func() time.Time
}

// Outcome reports side signals of a reduction. Err surfaces to the UI;
// CloseForbidden tells the connection manager to tear the socket down.
type Outcome struct {
	Err            string
	CloseForbidden bool
}

// Reduce applies one inbound event to the state. Unknown event types are
// logged and ignored; a reduction never fails.
func Reduce(st *State, ev models.ServerEvent, ctx ReduceContext) Outcome {
	switch ev.Type {
	case models.EventError:
		msg := ev.Message
		if msg == "" {
			msg = "unknown websocket error"
		}
		return Outcome{Err: msg, CloseForbidden: ev.Code == models.CloseForbidden}

	case models.EventChatMessage:
		// Guard against late frames from a stale socket after a room change.
		if ev.BoutiqueID != ctx.ShopID {
			return Outcome{}
		}
		st.Messages = append(st.Messages, newChatMessage(ev, ctx))

	case models.EventCustomers, models.EventMembers:
		// Roster events are snapshots, not deltas.
		entries := ev.Customers
		if ev.Type == models.EventMembers {
			entries = ev.Members
		}
		members := make([]models.Member, 0, len(entries))
		for _, e := range entries {
			members = append(members, models.Member{ID: e.ID, Name: e.Name, IsOnline: e.Presence()})
		}
		st.Members = members

	case models.EventCustomerEntered:
		st.upsertOnline(ev.CustomerID, ev.CustomerName)
		now := ctx.now()
		st.Notifications = append(st.Notifications, models.Notification{
			ID:         fmt.Sprintf("enter-%s-%d", ev.CustomerID, now.UnixMilli()),
			Message:    fmt.Sprintf("%s joined your shop", ev.CustomerName),
			SenderName: ev.CustomerName,
			Timestamp:  now.Format(time.RFC3339),
		})

	case models.EventMemberStatus:
		for i := range st.Members {
			if st.Members[i].ID == ev.UserID {
				st.Members[i].IsOnline = ev.IsOnline
			}
		}

	case models.EventNotification:
		st.Notifications = append(st.Notifications, models.Notification{
			ID:         ev.NotificationID,
			Message:    ev.Message,
			SenderName: ev.SenderName,
			Timestamp:  ev.Time,
			IsRead:     ev.Read,
		})

	case models.EventNotifications:
		// Backlog reply to get_notifications: merge entries not seen yet.
		seen := make(map[string]bool, len(st.Notifications))
		for _, n := range st.Notifications {
			seen[n.ID] = true
		}
		for _, p := range ev.Notifications {
			if seen[p.ID] {
				continue
			}
			st.Notifications = append(st.Notifications, models.Notification{
				ID:         p.ID,
				Message:    p.Message,
				SenderName: p.SenderName,
				Timestamp:  p.Time,
				IsRead:     p.Read,
			})
		}

	case models.EventMessageEdited:
		// No-op for unknown ids: an edit never creates a message.
		for i := range st.Messages {
			if st.Messages[i].ID == ev.MessageID {
				st.Messages[i].Content = ev.NewText
				st.Messages[i].IsEdited = true
			}
		}

	case models.EventMessageDeleted:
		// Soft delete: content stays, rendering substitutes a placeholder.
		for i := range st.Messages {
			if st.Messages[i].ID == ev.MessageID {
				st.Messages[i].IsDeleted = true
			}
		}

	case models.EventMessageReaction:
		for i := range st.Messages {
			if st.Messages[i].ID == ev.MessageID {
				st.Messages[i].Reactions = append(st.Messages[i].Reactions, models.Reaction{
					Emoji:       ev.Emoji,
					ReactorName: ev.SenderName,
				})
			}
		}

	case models.EventConnectionAck, models.EventMessagePinned, models.EventMessageRead,
		models.EventNotificationRead, models.EventAllNotificationsRead:
		// Acknowledged, no local state change.

	default:
		logger.Warn("unhandled event type: %s", ev.Type)
	}

	return Outcome{}
}

func newChatMessage(ev models.ServerEvent, ctx ReduceContext) models.ChatMessage {
	peerID := ev.CustomerID
	if peerID == "" {
		peerID = ctx.ActivePeer
	}
	if peerID == "" {
		peerID = "unknown"
	}
	peerName := ev.SenderName
	if peerName == "" {
		peerName = "unknown"
	}

	var replyTo string
	if ev.ReplyTo != nil {
		replyTo = *ev.ReplyTo
	}

	return models.ChatMessage{
		ID:                 ev.ID,
		PeerID:             peerID,
		PeerName:           peerName,
		SenderID:           ev.SenderID,
		Content:            ev.Message,
		Timestamp:          ev.Time,
		HasPromotionMarker: strings.Contains(ev.Message, PromoCodeToken),
		IsEdited:           ev.IsEdited,
		IsDeleted:          ev.IsDeleted,
		ReplyToID:          replyTo,
	}
}

func (st *State) upsertOnline(id, name string) {
	for i := range st.Members {
		if st.Members[i].ID == id {
			st.Members[i].IsOnline = true
			return
		}
	}
	st.Members = append(st.Members, models.Member{ID: id, Name: name, IsOnline: true})
}

func (ctx ReduceContext) now() time.Time {
	if ctx.Now != nil {
		return ctx.Now()
	}
	return time.Now()
}
