package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordCost is the lowest bcrypt cost accepted for stored hashes
const MinPasswordCost = 10

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("hashed password is not the hash of the given password")

// BcryptHasher implements PasswordAuthenticator with a fixed cost.
type BcryptHasher struct {
	cost int
}

var _ PasswordAuthenticator = BcryptHasher{}

// NewBcryptHasher returns a hasher using cost, raised to MinPasswordCost
// when lower. Zero picks the build default.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost == 0 {
		cost = passwordHashCost()
	}
	if cost < MinPasswordCost {
		cost = MinPasswordCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return BcryptHasher{cost: cost}
}

// Cost returns the work factor used for new hashes
func (b BcryptHasher) Cost() int {
	if b.cost < MinPasswordCost {
		return MinPasswordCost
	}
	return b.cost
}

// HashPassword will generate a password hash
func (b BcryptHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (b BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword hashes with the build default cost
func HashPassword(password string) (string, error) {
	return NewBcryptHasher(0).HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
