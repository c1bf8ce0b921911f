package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/goliatone/go-auth-signup/mail"
)

const (
	DefaultSignupTokenTTL  = 5 * time.Minute
	DefaultResetTokenTTL   = 5 * time.Minute
	DefaultSessionTokenTTL = 30 * time.Minute

	commandTimeout = 10 * time.Second
)

// MessageComposer renders the mails that carry signup and reset tokens
type MessageComposer interface {
	Verification(email, token string, ttl time.Duration) (subject, body string, err error)
	PasswordReset(email, token string, ttl time.Duration) (subject, body string, err error)
}

// Dependencies are the collaborators shared by the auth flows
type Dependencies struct {
	Repo     RepositoryManager
	Tokens   TokenService
	Sealer   *PasswordSealer
	Hasher   PasswordAuthenticator
	Mailer   Mailer
	Composer MessageComposer

	SignupTTL  time.Duration
	ResetTTL   time.Duration
	SessionTTL time.Duration

	// UseHashid derives user ids from the email instead of a random uuid
	UseHashid bool
	// UserID overrides how ids are derived from the email, a failure falls
	// back to a random uuid
	UserID func(email string) (uuid.UUID, error)

	Now    func() time.Time
	Logger Logger
}

// DependenciesFromConfig fills TTLs, sealing, hashing and id options from cfg
func DependenciesFromConfig(cfg Config, repo RepositoryManager, tokens TokenService, mailer Mailer, logger Logger) Dependencies {
	return Dependencies{
		Repo:       repo,
		Tokens:     tokens,
		Sealer:     NewPasswordSealer(cfg.GetSealKey()),
		Hasher:     NewBcryptHasher(cfg.GetPasswordCost()),
		Mailer:     mailer,
		SignupTTL:  cfg.GetSignupTokenTTL(),
		ResetTTL:   cfg.GetResetTokenTTL(),
		SessionTTL: cfg.GetSessionTokenTTL(),
		UseHashid:  cfg.GetUseHashid(),
		Logger:     logger,
	}
}

// Validate makes sure the required collaborators are set
func (d Dependencies) Validate() error {
	missing := []string{}
	if d.Repo == nil {
		missing = append(missing, "repo")
	}
	if d.Tokens == nil {
		missing = append(missing, "tokens")
	}
	if d.Mailer == nil {
		missing = append(missing, "mailer")
	}

	if len(missing) > 0 {
		return goerrors.New("auth flows are missing dependencies", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"missing": missing})
	}
	return nil
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Hasher == nil {
		d.Hasher = NewBcryptHasher(0)
	}
	if d.Composer == nil {
		d.Composer = mail.Composer{}
	}
	if d.SignupTTL <= 0 {
		d.SignupTTL = DefaultSignupTokenTTL
	}
	if d.ResetTTL <= 0 {
		d.ResetTTL = DefaultResetTokenTTL
	}
	if d.SessionTTL <= 0 {
		d.SessionTTL = DefaultSessionTokenTTL
	}
	if d.UserID == nil && d.UseHashid {
		d.UserID = func(email string) (uuid.UUID, error) {
			return hashid.NewUUID(email)
		}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = defLogger{}
	}
	return d
}

// Flows drives the two token state machines:
//
//	signup: requested -> token issued -> verified -> user created
//	                                  -> expired | already registered
//	reset:  requested -> token issued -> consumed -> password updated
//	                                  -> expired | user missing
//
// and the login flow that issues session tokens. Business outcomes are
// returned as result values, every failure is a *goerrors.Error.
type Flows struct {
	signup *SignupHandler
	verify *VerifySignupHandler
	forgot *InitializePasswordResetHandler
	reset  *FinalizePasswordResetHandler
	auther *Auther
}

// NewFlows wires the command handlers around deps
func NewFlows(deps Dependencies) (*Flows, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	deps = deps.withDefaults()

	return &Flows{
		signup: NewSignupHandler(deps),
		verify: NewVerifySignupHandler(deps),
		forgot: NewInitializePasswordResetHandler(deps),
		reset:  NewFinalizePasswordResetHandler(deps),
		auther: NewAuther(deps),
	}, nil
}

func (f *Flows) Signup(ctx context.Context, email, password string) (*SignupResult, error) {
	return f.signup.Execute(ctx, SignupMessage{Email: email, Password: password})
}

func (f *Flows) VerifySignup(ctx context.Context, token string) (*VerifySignupResult, error) {
	return f.verify.Execute(ctx, VerifySignupMessage{Token: token})
}

func (f *Flows) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return f.auther.Login(ctx, email, password)
}

func (f *Flows) ForgotPassword(ctx context.Context, email string) (*InitializePasswordResetResult, error) {
	return f.forgot.Execute(ctx, InitializePasswordResetMessage{Email: email})
}

func (f *Flows) ResetPassword(ctx context.Context, token, password1, password2 string) (*FinalizePasswordResetResult, error) {
	return f.reset.Execute(ctx, FinalizePasswordResetMessage{
		Token:     token,
		Password1: password1,
		Password2: password2,
	})
}

// Authenticator exposes the login and session side of the flows
func (f *Flows) Authenticator() *Auther {
	return f.auther
}

func cancelledError(ctx context.Context, operation string) error {
	return goerrors.Wrap(
		ctx.Err(),
		goerrors.CategoryOperation,
		"context cancelled during "+operation,
	)
}

// finalizeError keeps rich errors as they are and wraps anything else
func finalizeError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}
