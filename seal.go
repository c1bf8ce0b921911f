package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const sealNonceSize = 24

// ErrSealOpen sealed value could not be authenticated
var ErrSealOpen = goerrors.New("unable to open sealed value", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// PasswordSealer encrypts the password carried by signup tokens so it is not
// readable by anyone holding the token.
type PasswordSealer struct {
	key [32]byte
}

// NewPasswordSealer derives a secretbox key from secret. It returns nil for
// an empty secret, callers then embed the password in clear.
func NewPasswordSealer(secret string) *PasswordSealer {
	if secret == "" {
		return nil
	}
	return &PasswordSealer{key: sha256.Sum256([]byte(secret))}
}

// Seal encrypts plain and returns nonce+box encoded as raw url base64
func (s *PasswordSealer) Seal(plain string) (string, error) {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate nonce")
	}

	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal
func (s *PasswordSealer) Open(sealed string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < sealNonceSize+secretbox.Overhead {
		return "", ErrSealOpen
	}

	var nonce [sealNonceSize]byte
	copy(nonce[:], raw[:sealNonceSize])

	plain, ok := secretbox.Open(nil, raw[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrSealOpen
	}
	return string(plain), nil
}
