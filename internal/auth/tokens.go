// Package auth issues and verifies the platform's bearer tokens.
// Access tokens authenticate API calls; refresh tokens only mint new
// access tokens. The two are type-tagged so one cannot stand in for
// the other.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/examhall/internal/rbac"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongTokenUse = errors.New("token not valid for this use")
)

type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Service struct {
	hmac       []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{hmac: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// TokenPair is what login and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (s *Service) IssuePair(userID string, role rbac.Role) (TokenPair, error) {
	access, err := s.issue(userID, role, TokenAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.issue(userID, role, TokenRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) IssueAccess(userID string, role rbac.Role) (string, error) {
	return s.issue(userID, role, TokenAccess, s.accessTTL)
}

func (s *Service) issue(userID string, role rbac.Role, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:      string(role),
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "examhall",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// ParseAccess validates an access token and returns the principal it
// encodes.
func (s *Service) ParseAccess(tokenStr string) (rbac.Principal, error) {
	return s.parse(tokenStr, TokenAccess)
}

// ParseRefresh validates a refresh token.
func (s *Service) ParseRefresh(tokenStr string) (rbac.Principal, error) {
	return s.parse(tokenStr, TokenRefresh)
}

func (s *Service) parse(tokenStr, wantType string) (rbac.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.hmac, nil
	})
	if err != nil {
		return rbac.Principal{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return rbac.Principal{}, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return rbac.Principal{}, ErrWrongTokenUse
	}
	role, ok := rbac.ParseRole(claims.Role)
	if !ok {
		return rbac.Principal{}, ErrInvalidToken
	}
	return rbac.Principal{ID: claims.Subject, Role: role}, nil
}
