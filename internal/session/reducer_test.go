package session

import (
	"testing"
	"time"

	"marketchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopCtx() ReduceContext {
	return ReduceContext{
		ShopID: "42",
		Now:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func chatEvent(id, content string) models.ServerEvent {
	return models.ServerEvent{
		Type:       models.EventChatMessage,
		ID:         id,
		Message:    content,
		SenderID:   "3",
		SenderName: "Alice",
		CustomerID: "7",
		BoutiqueID: "42",
		Time:       "2025-06-01T12:00:00Z",
	}
}

func TestReduceChatMessage(t *testing.T) {
	var st State
	out := Reduce(&st, chatEvent("m1", "hello"), shopCtx())

	assert.Equal(t, Outcome{}, out)
	require.Len(t, st.Messages, 1)
	msg := st.Messages[0]
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "7", msg.PeerID)
	assert.Equal(t, "Alice", msg.PeerName)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.HasPromotionMarker)
}

func TestReduceChatMessagePromoMarker(t *testing.T) {
	var st State
	Reduce(&st, chatEvent("m1", "10% off with code EARLY10 today"), shopCtx())
	require.Len(t, st.Messages, 1)
	assert.True(t, st.Messages[0].HasPromotionMarker)
}

func TestReduceChatMessageCrossRoomDropped(t *testing.T) {
	var st State
	ev := chatEvent("m1", "late frame")
	ev.BoutiqueID = "99"

	Reduce(&st, ev, shopCtx())
	assert.Empty(t, st.Messages)
}

func TestReduceChatMessagePeerFallback(t *testing.T) {
	ev := chatEvent("m1", "hi")
	ev.CustomerID = ""
	ev.SenderName = ""

	ctx := shopCtx()
	ctx.ActivePeer = "7"
	var st State
	Reduce(&st, ev, ctx)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "7", st.Messages[0].PeerID)
	assert.Equal(t, "unknown", st.Messages[0].PeerName)

	st = State{}
	ctx.ActivePeer = ""
	Reduce(&st, ev, ctx)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "unknown", st.Messages[0].PeerID)
}

func TestReduceEditDeleteLifecycle(t *testing.T) {
	// chat_message, then edit, then delete: one message carrying all flags.
	var st State
	ctx := shopCtx()
	Reduce(&st, chatEvent("1", "original"), ctx)
	Reduce(&st, models.ServerEvent{Type: models.EventMessageEdited, MessageID: "1", NewText: "x"}, ctx)
	Reduce(&st, models.ServerEvent{Type: models.EventMessageDeleted, MessageID: "1"}, ctx)

	require.Len(t, st.Messages, 1)
	msg := st.Messages[0]
	assert.Equal(t, "x", msg.Content)
	assert.True(t, msg.IsEdited)
	assert.True(t, msg.IsDeleted)
}

func TestReduceEditDeleteUnknownIDNoCreate(t *testing.T) {
	var st State
	ctx := shopCtx()
	Reduce(&st, models.ServerEvent{Type: models.EventMessageEdited, MessageID: "ghost", NewText: "x"}, ctx)
	Reduce(&st, models.ServerEvent{Type: models.EventMessageDeleted, MessageID: "ghost"}, ctx)
	assert.Empty(t, st.Messages)
}

func TestReduceRosterSnapshotReplaces(t *testing.T) {
	st := State{Members: []models.Member{{ID: "old", Name: "Old", IsOnline: true}}}

	Reduce(&st, models.ServerEvent{
		Type: models.EventCustomers,
		Customers: []models.RosterEntry{
			{ID: "7", Name: "Bob", IsOnline: true},
			{ID: "8", Name: "Carol"},
		},
	}, shopCtx())

	require.Len(t, st.Members, 2)
	assert.Equal(t, "7", st.Members[0].ID)
	assert.Equal(t, "8", st.Members[1].ID)
}

func TestReduceRosterSnakeCasePresence(t *testing.T) {
	online := true
	var st State
	Reduce(&st, models.ServerEvent{
		Type:    models.EventMembers,
		Members: []models.RosterEntry{{ID: "3", Name: "Alice", Online: &online}},
	}, shopCtx())

	require.Len(t, st.Members, 1)
	assert.True(t, st.Members[0].IsOnline)
}

func TestReduceCustomerEntered(t *testing.T) {
	var st State
	Reduce(&st, models.ServerEvent{
		Type:         models.EventCustomerEntered,
		CustomerID:   "7",
		CustomerName: "Bob",
	}, shopCtx())

	require.Len(t, st.Members, 1)
	assert.True(t, st.Members[0].IsOnline)

	require.Len(t, st.Notifications, 1)
	n := st.Notifications[0]
	assert.Contains(t, n.Message, "Bob joined your shop")
	assert.False(t, n.IsRead)
	assert.Contains(t, n.ID, "enter-7-")

	// Re-entering upserts, never duplicates.
	Reduce(&st, models.ServerEvent{
		Type:         models.EventCustomerEntered,
		CustomerID:   "7",
		CustomerName: "Bob",
	}, shopCtx())
	assert.Len(t, st.Members, 1)
}

func TestReduceMemberStatus(t *testing.T) {
	st := State{Members: []models.Member{{ID: "7", Name: "Bob", IsOnline: true}}}

	Reduce(&st, models.ServerEvent{Type: models.EventMemberStatus, UserID: "7", IsOnline: false}, shopCtx())
	assert.False(t, st.Members[0].IsOnline)

	// Unknown member id is a no-op.
	Reduce(&st, models.ServerEvent{Type: models.EventMemberStatus, UserID: "ghost", IsOnline: true}, shopCtx())
	assert.Len(t, st.Members, 1)
}

func TestReduceNotification(t *testing.T) {
	var st State
	Reduce(&st, models.ServerEvent{
		Type:           models.EventNotification,
		NotificationID: "n1",
		Message:        "New message from Alice",
		SenderName:     "Alice",
		Time:           "2025-06-01T12:00:00Z",
	}, shopCtx())

	require.Len(t, st.Notifications, 1)
	assert.False(t, st.Notifications[0].IsRead)
}

func TestReduceNotificationsBacklogMerge(t *testing.T) {
	st := State{Notifications: []models.Notification{{ID: "n1", Message: "seen"}}}

	Reduce(&st, models.ServerEvent{
		Type: models.EventNotifications,
		Notifications: []models.NotificationPayload{
			{ID: "n1", Message: "seen"},
			{ID: "n2", Message: "fresh", Read: true},
		},
	}, shopCtx())

	require.Len(t, st.Notifications, 2)
	assert.Equal(t, "n2", st.Notifications[1].ID)
	assert.True(t, st.Notifications[1].IsRead)
}

func TestReduceMessageReaction(t *testing.T) {
	var st State
	ctx := shopCtx()
	Reduce(&st, chatEvent("m1", "hello"), ctx)
	Reduce(&st, models.ServerEvent{
		Type:       models.EventMessageReaction,
		MessageID:  "m1",
		Emoji:      "❤️",
		SenderName: "Bob",
	}, ctx)

	require.Len(t, st.Messages[0].Reactions, 1)
	assert.Equal(t, "❤️", st.Messages[0].Reactions[0].Emoji)
	assert.Equal(t, "Bob", st.Messages[0].Reactions[0].ReactorName)
}

func TestReduceErrorEvent(t *testing.T) {
	var st State
	out := Reduce(&st, models.ServerEvent{Type: models.EventError, Message: "boom"}, shopCtx())
	assert.Equal(t, "boom", out.Err)
	assert.False(t, out.CloseForbidden)

	out = Reduce(&st, models.ServerEvent{Type: models.EventError, Message: "denied", Code: 4003}, shopCtx())
	assert.True(t, out.CloseForbidden)

	out = Reduce(&st, models.ServerEvent{Type: models.EventError}, shopCtx())
	assert.Equal(t, "unknown websocket error", out.Err)
}

func TestReduceAcknowledgedAndUnknownEvents(t *testing.T) {
	var st State
	ctx := shopCtx()
	before := st

	for _, typ := range []string{
		models.EventConnectionAck,
		models.EventMessagePinned,
		models.EventMessageRead,
		models.EventNotificationRead,
		models.EventAllNotificationsRead,
		"totally_unknown",
	} {
		out := Reduce(&st, models.ServerEvent{Type: typ, MessageID: "m1"}, ctx)
		assert.Equal(t, Outcome{}, out, typ)
	}
	assert.Equal(t, before, st)
}
