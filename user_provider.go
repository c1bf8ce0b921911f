package auth

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Email() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, email, password string) (Identity, error)
}

// UserProvider checks credentials against the credential store
type UserProvider struct {
	store  CredentialStore
	hasher PasswordAuthenticator
	logger Logger
}

var _ IdentityProvider = (*UserProvider)(nil)

func NewUserProvider(store CredentialStore, hasher PasswordAuthenticator) *UserProvider {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &UserProvider{
		store:  store,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return
// identity. Unknown emails and wrong passwords are told apart.
func (u UserProvider) VerifyIdentity(ctx context.Context, email, password string) (Identity, error) {
	user, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		if HasTextCode(err, TextCodeIdentityNotFound) {
			return nil, ErrNoSuchUser
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := u.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrBadCredentials
		}
		u.logger.Error("stored hash for user %s is unusable: %v", user.ID, err)
		return nil, ErrBadCredentials
	}

	return authIdentity{id: user.ID.String(), email: user.Email}, nil
}

type authIdentity struct {
	id    string
	email string
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Email() string {
	return a.email
}
