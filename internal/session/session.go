package session

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"marketchat/internal/models"
	"marketchat/pkg/logger"
)

// ErrPromotionAdminRoom rejects promotion offers outside shop rooms.
var ErrPromotionAdminRoom = errors.New("promotions are not available in admin rooms")

const promotionMessage = "To thank you for your early payment, enjoy 10% off your next order! Promo code: " + PromoCodeToken

// Identity is the externally supplied context a session connects under. Any
// field change recomputes the room; stale identity is never cached.
type Identity struct {
	UserID string
	Role   models.Role
	ShopID string
	Token  string
}

type Config struct {
	GatewayURL           string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration

	// Dialer overrides the gorilla dialer, for tests.
	Dialer Dialer
	// Now overrides the clock for synthetic notification timestamps.
	Now func() time.Time
}

// Session is the one UI-facing type: intents in, derived read views out.
// It exclusively owns the message, member and notification collections; the
// connection manager only ever hands it decoded events.
type Session struct {
	mu  sync.Mutex
	cfg Config

	manager *Manager

	identity   Identity
	hasIdent   bool
	room       Room
	resolveErr error
	activePeer string

	state   State
	lastErr string
}

func New(cfg Config) *Session {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "ws://localhost:8000"
	}

	s := &Session{cfg: cfg}
	s.manager = NewManager(ManagerConfig{
		Dialer:               cfg.Dialer,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		OnEvent:              s.handleEvent,
		OnStateChange:        s.handleStateChange,
	})
	return s
}

// SetIdentity recomputes the room from the new context and reconnects when it
// changed. Identical identity is a no-op, so callers may invoke this on every
// render. A live socket for the old room is closed (code 1000) before the new
// room's socket opens; two rooms are never connected at once.
func (s *Session) SetIdentity(id Identity) {
	s.mu.Lock()
	if s.hasIdent && id == s.identity {
		s.mu.Unlock()
		return
	}

	s.identity = id
	s.hasIdent = true

	room, err := ResolveRoom(id.UserID, id.Role, id.ShopID)
	s.room = room
	s.resolveErr = err

	var target ConnectTarget
	if err != nil {
		s.lastErr = err.Error()
	} else {
		s.lastErr = ""
		target = s.connectTargetLocked()
	}
	s.mu.Unlock()

	// The manager notifies state changes synchronously, so it is never
	// called with the session lock held.
	s.manager.Close()
	if err != nil {
		logger.Info("room resolution failed: %v", err)
		return
	}
	if id.Token == "" {
		// Stay idle until the auth provider supplies a token.
		return
	}
	s.manager.Connect(target)
}

// Stop tears down the session: socket closed with 1000, reconnect timer
// cancelled, queue cleared.
func (s *Session) Stop() {
	s.manager.Close()
}

func (s *Session) connectTargetLocked() ConnectTarget {
	id := s.identity

	rosterOp := models.OpGetCustomers
	if s.room.Kind == models.RoomKindAdmin {
		rosterOp = models.OpGetMembers
	}

	return ConnectTarget{
		URL: models.GatewayURL(s.cfg.GatewayURL, s.room.Name, id.Token, id.Role, id.ShopID),
		InitFrames: [][]byte{
			mustMarshal(models.ConnectOp{Type: models.OpConnect, Role: id.Role, BoutiqueID: id.ShopID, UserID: id.UserID}),
			mustMarshal(models.RosterOp{Type: rosterOp, BoutiqueID: id.ShopID}),
			mustMarshal(models.NotificationsOp{Type: models.OpGetNotifications, BoutiqueID: id.ShopID}),
		},
	}
}

// ----- intents -----
// All intents are fire-and-forget: the op is sent on an open socket or
// buffered for the next flush, and results surface later through state.

func (s *Session) SendMessage(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	op := models.ChatMessageOp{
		Type:       models.OpChatMessage,
		Message:    text,
		BoutiqueID: s.identity.ShopID,
	}
	if s.room.Kind == models.RoomKindShop {
		op.CustomerID = s.activePeer
	}
	s.mu.Unlock()

	s.manager.EnqueueOrSend(mustMarshal(op))
}

func (s *Session) EditMessage(messageID, newText string) {
	if newText == "" {
		return
	}
	s.manager.EnqueueOrSend(mustMarshal(models.EditMessageOp{
		Type:      models.OpEditMessage,
		MessageID: messageID,
		NewText:   newText,
	}))
}

func (s *Session) DeleteMessage(messageID string) {
	s.manager.EnqueueOrSend(mustMarshal(models.MessageOp{Type: models.OpDeleteMessage, MessageID: messageID}))
}

func (s *Session) PinMessage(messageID string) {
	s.manager.EnqueueOrSend(mustMarshal(models.MessageOp{Type: models.OpPinMessage, MessageID: messageID}))
}

func (s *Session) ReactToMessage(messageID, emoji string) {
	s.manager.EnqueueOrSend(mustMarshal(models.MessageOp{Type: models.OpReactToMessage, MessageID: messageID, Emoji: emoji}))
}

func (s *Session) MarkNotificationRead(notificationID string) {
	s.mu.Lock()
	for i := range s.state.Notifications {
		if s.state.Notifications[i].ID == notificationID {
			s.state.Notifications[i].IsRead = true
		}
	}
	s.mu.Unlock()

	s.manager.EnqueueOrSend(mustMarshal(models.MarkReadOp{Type: models.OpMarkRead, NotificationID: notificationID}))
}

func (s *Session) MarkAllNotificationsRead() {
	s.mu.Lock()
	for i := range s.state.Notifications {
		s.state.Notifications[i].IsRead = true
	}
	s.mu.Unlock()

	s.manager.EnqueueOrSend(mustMarshal(models.MarkAllReadOp{Type: models.OpMarkAllRead}))
}

// SelectPeer filters the message view; nothing is transmitted. Admin rooms
// have no peer scoping, selecting there clears the filter.
func (s *Session) SelectPeer(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room.Kind == models.RoomKindShop {
		s.activePeer = peerID
	} else {
		s.activePeer = ""
	}
}

// OfferPromotion sends the canned early-payment promo message to one peer.
// Only shop rooms carry promotions.
func (s *Session) OfferPromotion(peerID string) error {
	s.mu.Lock()
	if s.room.Kind != models.RoomKindShop {
		s.mu.Unlock()
		return ErrPromotionAdminRoom
	}
	op := models.ChatMessageOp{
		Type:       models.OpChatMessage,
		Message:    promotionMessage,
		CustomerID: peerID,
		BoutiqueID: s.identity.ShopID,
	}
	s.mu.Unlock()

	s.manager.EnqueueOrSend(mustMarshal(op))
	return nil
}

// ----- read views -----

// MessagesForActivePeer returns the visible timeline: everything in admin
// rooms or with no peer selected, otherwise the selected peer's messages.
// IsMine is derived here from the current identity, never stored, so it stays
// correct when identity changes mid-session.
func (s *Session) MessagesForActivePeer() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	mine := func(m models.ChatMessage) bool {
		return s.identity.Role == models.RoleMerchant && m.SenderID == s.identity.UserID
	}

	out := make([]models.ChatMessage, 0, len(s.state.Messages))
	for _, m := range s.state.Messages {
		if s.room.Kind == models.RoomKindShop && s.activePeer != "" && m.PeerID != s.activePeer {
			continue
		}
		m.IsMine = mine(m)
		out = append(out, m)
	}
	return out
}

func (s *Session) Members() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Member, len(s.state.Members))
	copy(out, s.state.Members)
	return out
}

func (s *Session) OnlineMembers() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Member
	for _, m := range s.state.Members {
		if m.IsOnline {
			out = append(out, m)
		}
	}
	return out
}

func (s *Session) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.state.Notifications))
	copy(out, s.state.Notifications)
	return out
}

func (s *Session) UnreadNotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, notif := range s.state.Notifications {
		if !notif.IsRead {
			n++
		}
	}
	return n
}

func (s *Session) ConnState() ConnState {
	return s.manager.State()
}

// Room returns the resolved room, or the resolution error when the current
// identity does not map to one.
func (s *Session) Room() (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room, s.resolveErr
}

// LastError is the single error observable: resolution, transport and
// application errors all land here. Empty when healthy.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ----- inbound -----

func (s *Session) handleEvent(ev models.ServerEvent) {
	s.mu.Lock()
	outcome := Reduce(&s.state, ev, ReduceContext{
		ShopID:     s.identity.ShopID,
		ActivePeer: s.activePeer,
		Now:        s.cfg.Now,
	})
	if outcome.Err != "" {
		s.lastErr = outcome.Err
	}
	s.mu.Unlock()

	if outcome.CloseForbidden {
		s.manager.Abort("unauthorized for this room")
	}
}

func (s *Session) handleStateChange(state ConnState, errText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		// Resolution errors clear only on a context change.
		return
	}
	s.lastErr = errText
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// All op structs marshal cleanly; this guards future shapes.
		logger.Error("marshal op: %v", err)
		return []byte("{}")
	}
	return data
}
