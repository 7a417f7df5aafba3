package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified token attaches to a connection. Event
// handlers trust it for identity and re-check authorization per operation.
type Identity struct {
	UserID   int
	OrgID    int
	Username string
}

type Claims struct {
	UserID   int    `json:"userId"`
	OrgID    int    `json:"organizationId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator validates bearer tokens against a shared HS256 secret.
// It is a one-time gate at connection establishment.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Validate(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID == 0 {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID:   claims.UserID,
		OrgID:    claims.OrgID,
		Username: claims.Username,
	}, nil
}
