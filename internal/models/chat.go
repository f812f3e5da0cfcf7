package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleMerchant, RoleAdmin:
		return true
	}
	return false
}

type RoomKind string

const (
	RoomKindShop  RoomKind = "shop"
	RoomKindAdmin RoomKind = "admin"
)

// Reaction is one emoji left on a message by a named user.
type Reaction struct {
	Emoji       string `json:"emoji"`
	ReactorName string `json:"name"`
}

// ChatMessage is the client-local view of a message. IsMine is derived at
// read time from the current identity and is never part of the stored state.
type ChatMessage struct {
	ID                 string     `json:"id"`
	PeerID             string     `json:"peerId"`
	PeerName           string     `json:"peerName"`
	SenderID           string     `json:"senderId"`
	Content            string     `json:"content"`
	Timestamp          string     `json:"timestamp"`
	IsMine             bool       `json:"isMine"`
	HasPromotionMarker bool       `json:"hasPromotionMarker"`
	IsEdited           bool       `json:"isEdited"`
	IsDeleted          bool       `json:"isDeleted"`
	ReplyToID          string     `json:"replyToId,omitempty"`
	Reactions          []Reaction `json:"reactions,omitempty"`
}

type Member struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsOnline bool   `json:"isOnline"`
}

type Notification struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	SenderName string `json:"senderName"`
	Timestamp  string `json:"time"`
	IsRead     bool   `json:"read"`
}
