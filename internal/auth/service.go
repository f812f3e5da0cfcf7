package auth

import (
	"fmt"
	"time"

	"marketchat/internal/config"
	"marketchat/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the auth provider asserts about a connecting user.
type Identity struct {
	UserID string
	Name   string
	Role   models.Role
	ShopID string
}

type Service struct {
	secret    []byte
	expiresIn time.Duration
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		secret:    cfg.JWT.Secret,
		expiresIn: cfg.JWT.ExpiresIn,
	}
}

func (s *Service) GenerateToken(id Identity) (string, error) {
	claims := jwt.MapClaims{
		"user_id":     id.UserID,
		"name":        id.Name,
		"role":        string(id.Role),
		"boutique_id": id.ShopID,
		"exp":         time.Now().Add(s.expiresIn).Unix(),
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

func (s *Service) IdentityFromToken(tokenString string) (Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}

	userID, ok := (*claims)["user_id"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("invalid user ID in token")
	}

	name, _ := (*claims)["name"].(string)
	role, _ := (*claims)["role"].(string)
	shopID, _ := (*claims)["boutique_id"].(string)

	return Identity{
		UserID: userID,
		Name:   name,
		Role:   models.Role(role),
		ShopID: shopID,
	}, nil
}
