package session

import (
	"errors"

	"marketchat/internal/models"
)

// Resolution errors. Fatal to connect: they are never retried and clear only
// when the identity context changes.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMerchantShopID  = errors.New("missing shop id for merchant")
	ErrCustomerShopID  = errors.New("missing shop id for customer")
	ErrInvalidRole     = errors.New("invalid role")
)

// Room is the logical channel a user belongs to, derived from identity alone.
type Room struct {
	Name string
	Kind models.RoomKind
}

// ResolveRoom maps (userId, role, shopId) to a room. Pure and deterministic:
// identical inputs always yield identical output, so callers can compare
// results to skip redundant reconnects. For admins the shop id is irrelevant.
func ResolveRoom(userID string, role models.Role, shopID string) (Room, error) {
	if userID == "" || role == "" {
		return Room{}, ErrUnauthenticated
	}

	switch role {
	case models.RoleMerchant:
		if shopID == "" {
			return Room{}, ErrMerchantShopID
		}
		return Room{Name: "shop_" + shopID, Kind: models.RoomKindShop}, nil
	case models.RoleAdmin:
		return Room{Name: "admin_" + userID, Kind: models.RoomKindAdmin}, nil
	case models.RoleCustomer:
		if shopID == "" {
			return Room{}, ErrCustomerShopID
		}
		return Room{Name: "shop_" + shopID, Kind: models.RoomKindShop}, nil
	default:
		return Room{}, ErrInvalidRole
	}
}
