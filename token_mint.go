package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// SignupPayload is the pending registration carried by a signup token
type SignupPayload struct {
	Email    string
	Password string
}

// MintSignupToken issues a signup token carrying email and password. When a
// sealer is given the password is sealed, otherwise it travels in clear.
func MintSignupToken(tokenService TokenService, sealer *PasswordSealer, email, password string, ttl time.Duration) (string, time.Time, error) {
	if tokenService == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}

	claims := &TokenClaims{Email: email}
	if sealer != nil {
		sealed, err := sealer.Seal(password)
		if err != nil {
			return "", time.Time{}, err
		}
		claims.SealedPassword = sealed
	} else {
		claims.Password = password
	}

	return tokenService.Issue(PurposeSignup, claims, ttl)
}

// DecodeSignupToken verifies a signup token and recovers its payload
func DecodeSignupToken(tokenService TokenService, sealer *PasswordSealer, token string) (*SignupPayload, error) {
	claims, err := tokenService.Verify(PurposeSignup, token)
	if err != nil {
		return nil, err
	}

	payload := &SignupPayload{Email: claims.Email, Password: claims.Password}
	if claims.SealedPassword != "" {
		if sealer == nil {
			return nil, ErrSealOpen
		}
		if payload.Password, err = sealer.Open(claims.SealedPassword); err != nil {
			return nil, err
		}
	}

	if payload.Email == "" || payload.Password == "" {
		return nil, ErrTokenMalformed
	}

	return payload, nil
}

// MintUserToken issues a reset or session token for a user id
func MintUserToken(tokenService TokenService, purpose TokenPurpose, userID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	if tokenService == nil {
		return "", time.Time{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}
	if userID == uuid.Nil {
		return "", time.Time{}, goerrors.New("user id is required", goerrors.CategoryBadInput)
	}
	return tokenService.Issue(purpose, &TokenClaims{UID: userID.String()}, ttl)
}

// DecodeUserToken verifies a reset or session token and returns the user id
func DecodeUserToken(tokenService TokenService, purpose TokenPurpose, token string) (uuid.UUID, *TokenClaims, error) {
	claims, err := tokenService.Verify(purpose, token)
	if err != nil {
		return uuid.Nil, nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return uuid.Nil, nil, ErrTokenMalformed
	}
	return id, claims, nil
}
