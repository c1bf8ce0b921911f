package auth

import (
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	TokenID        string         `json:"token_id,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetExpiresAt() *time.Time {
	return s.ExpirationDate
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil || claims.UserID() == "" {
		return nil, ErrUnauthorized
	}

	if claims.Purpose() != PurposeSession {
		return nil, ErrTokenWrongPurpose
	}

	session := &SessionObject{
		UserID:  claims.UserID(),
		TokenID: claims.TokenID(),
		Data:    map[string]any{"purpose": claims.Purpose().String()},
	}

	if iat := claims.IssuedAt(); !iat.IsZero() {
		session.IssuedAt = &iat
	}

	if exp := claims.Expires(); !exp.IsZero() {
		session.ExpirationDate = &exp
	}

	if tc, ok := claims.(*TokenClaims); ok {
		session.Issuer = tc.Issuer
	}

	return session, nil
}
