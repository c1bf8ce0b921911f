package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-signup"
	"github.com/goliatone/go-auth-signup/mail"
)

const testPassword = "secret1"

type flowsFixture struct {
	flows  *auth.Flows
	repo   auth.RepositoryManager
	tokens *auth.TokenServiceImpl
	outbox *mail.Outbox
	clock  *testClock
}

func newFlowsFixture(t *testing.T, opts ...func(*auth.Dependencies)) *flowsFixture {
	t.Helper()

	clock := newTestClock()
	tokens := newTestTokenService(t, clock)
	repo := auth.NewRepositoryManager(newTestDB(t))
	outbox := mail.NewOutbox()

	deps := auth.Dependencies{
		Repo:   repo,
		Tokens: tokens,
		Hasher: auth.NewBcryptHasher(auth.MinPasswordCost),
		Mailer: outbox,
		Now:    clock.Now,
		Logger: testLogger{},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	flows, err := auth.NewFlows(deps)
	require.NoError(t, err)

	return &flowsFixture{
		flows:  flows,
		repo:   repo,
		tokens: tokens,
		outbox: outbox,
		clock:  clock,
	}
}

// tokenFromMail returns the token line of the last mail sent to email
func (f *flowsFixture) tokenFromMail(t *testing.T, email string) string {
	t.Helper()
	msg, ok := f.outbox.Last(email)
	require.True(t, ok, "no mail sent to %s", email)

	for _, line := range strings.Split(msg.Body, "\n") {
		line = strings.TrimSpace(line)
		if strings.Count(line, ".") == 2 && !strings.Contains(line, " ") {
			return line
		}
	}
	t.Fatalf("no token in mail body: %q", msg.Body)
	return ""
}

// register runs signup and verification for email
func (f *flowsFixture) register(t *testing.T, email, password string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	_, err := f.flows.Signup(ctx, email, password)
	require.NoError(t, err)

	res, err := f.flows.VerifySignup(ctx, f.tokenFromMail(t, email))
	require.NoError(t, err)
	require.Equal(t, auth.VerifyCreated, res.Outcome)
	return res.UserID
}

func TestNewFlowsRequiresDependencies(t *testing.T) {
	_, err := auth.NewFlows(auth.Dependencies{})
	assert.Error(t, err)
}

func TestSignupSendsVerificationWithoutCreatingUser(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()

	res, err := f.flows.Signup(ctx, "new.user@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, auth.SignupVerificationSent, res.Outcome)
	assert.Equal(t, "new.user@example.com", res.Email)
	assert.True(t, f.clock.Now().Add(auth.DefaultSignupTokenTTL).Equal(res.ExpiresAt))

	msg, ok := f.outbox.Last("new.user@example.com")
	require.True(t, ok)
	assert.Equal(t, mail.VerificationSubject, msg.Subject)

	_, err = f.repo.Users().FindByEmail(ctx, "new.user@example.com")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeIdentityNotFound))
}

func TestSignupValidation(t *testing.T) {
	f := newFlowsFixture(t)

	cases := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{name: "empty email", email: "", password: testPassword, field: "email"},
		{name: "bad email", email: "not-an-email", password: testPassword, field: "email"},
		{name: "short email", email: "a@b.c", password: testPassword, field: "email"},
		{name: "short password", email: "user@example.com", password: "12345", field: "password"},
		{name: "empty password", email: "user@example.com", password: "", field: "password"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.flows.Signup(context.Background(), tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, auth.IsValidationError(err))

			fields, ok := auth.ValidationFields(err)
			require.True(t, ok)
			assert.Contains(t, fields, tc.field)
		})
	}

	assert.Empty(t, f.outbox.Messages())
}

func TestSignupAlreadyRegistered(t *testing.T) {
	f := newFlowsFixture(t)
	f.register(t, "taken@example.com", testPassword)
	f.outbox.Reset()

	res, err := f.flows.Signup(context.Background(), "taken@example.com", "another-password")
	require.NoError(t, err)
	assert.Equal(t, auth.SignupAlreadyRegistered, res.Outcome)
	assert.Empty(t, f.outbox.Messages())
}

func TestSignupNormalizesEmail(t *testing.T) {
	f := newFlowsFixture(t)

	res, err := f.flows.Signup(context.Background(), "Mixed.Case@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", res.Email)

	verified, err := f.flows.VerifySignup(context.Background(), f.tokenFromMail(t, "mixed.case@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "mixed.case@example.com", verified.Email)

	_, err = f.flows.Login(context.Background(), "MIXED.case@example.com", testPassword)
	assert.NoError(t, err)
}

func TestSignupDeliveryFailure(t *testing.T) {
	f := newFlowsFixture(t)
	f.outbox.Err = errors.New("smtp: connection refused")

	_, err := f.flows.Signup(context.Background(), "user@example.com", testPassword)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeDeliveryFailed))
}

func TestVerifySignupCreatesUser(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()

	_, err := f.flows.Signup(ctx, "user@example.com", testPassword)
	require.NoError(t, err)

	res, err := f.flows.VerifySignup(ctx, f.tokenFromMail(t, "user@example.com"))
	require.NoError(t, err)
	assert.Equal(t, auth.VerifyCreated, res.Outcome)
	assert.NotEqual(t, uuid.Nil, res.UserID)

	user, err := f.repo.Users().FindByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, user.ID)
	assert.NotEqual(t, testPassword, user.PasswordHash)
	assert.NoError(t, auth.ComparePasswordAndHash(testPassword, user.PasswordHash))
}

func TestVerifySignupTwice(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()

	_, err := f.flows.Signup(ctx, "user@example.com", testPassword)
	require.NoError(t, err)
	token := f.tokenFromMail(t, "user@example.com")

	first, err := f.flows.VerifySignup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.VerifyCreated, first.Outcome)

	second, err := f.flows.VerifySignup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, auth.VerifyAlreadyRegistered, second.Outcome)
}

func TestVerifySignupConcurrent(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()

	_, err := f.flows.Signup(ctx, "racer@example.com", testPassword)
	require.NoError(t, err)
	token := f.tokenFromMail(t, "racer@example.com")

	const workers = 4
	var wg sync.WaitGroup
	results := make([]*auth.VerifySignupResult, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.flows.VerifySignup(ctx, token)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		if results[i].Outcome == auth.VerifyCreated {
			created++
		} else {
			assert.Equal(t, auth.VerifyAlreadyRegistered, results[i].Outcome)
		}
	}
	assert.Equal(t, 1, created)
}

func TestVerifySignupRejectsBadTokens(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()

	_, err := f.flows.Signup(ctx, "user@example.com", testPassword)
	require.NoError(t, err)
	token := f.tokenFromMail(t, "user@example.com")

	t.Run("too short", func(t *testing.T) {
		_, err := f.flows.VerifySignup(ctx, "abc")
		assert.True(t, auth.IsValidationError(err))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := f.flows.VerifySignup(ctx, "not.a.token")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := rewritePayload(t, token, func(p map[string]any) {
			p["email"] = "attacker@example.com"
		})
		_, err := f.flows.VerifySignup(ctx, tampered)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))
	})

	t.Run("session token", func(t *testing.T) {
		session, _, err := auth.MintUserToken(f.tokens, auth.PurposeSession, uuid.New(), time.Minute)
		require.NoError(t, err)
		_, err = f.flows.VerifySignup(ctx, session)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))
	})

	t.Run("expired", func(t *testing.T) {
		f.clock.Advance(auth.DefaultSignupTokenTTL + time.Second)
		_, err := f.flows.VerifySignup(ctx, token)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))

		_, err = f.repo.Users().FindByEmail(ctx, "user@example.com")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeIdentityNotFound))
	})
}

func TestVerifySignupWithSealedPassword(t *testing.T) {
	f := newFlowsFixture(t, func(d *auth.Dependencies) {
		d.Sealer = auth.NewPasswordSealer("seal-secret")
	})

	f.register(t, "sealed@example.com", testPassword)

	_, err := f.flows.Login(context.Background(), "sealed@example.com", testPassword)
	assert.NoError(t, err)
}

func TestVerifySignupWithHashid(t *testing.T) {
	f := newFlowsFixture(t, func(d *auth.Dependencies) {
		d.UseHashid = true
	})

	id := f.register(t, "hashed@example.com", testPassword)

	want, err := hashid.NewUUID("hashed@example.com")
	require.NoError(t, err)
	assert.Equal(t, want, id)
}

type warnRecorder struct {
	testLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnRecorder) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

func TestVerifySignupUserIDFailureFallsBackToRandom(t *testing.T) {
	logger := &warnRecorder{}
	f := newFlowsFixture(t, func(d *auth.Dependencies) {
		d.Logger = logger
		d.UserID = func(string) (uuid.UUID, error) {
			return uuid.Nil, errors.New("hashid unavailable")
		}
	})

	id := f.register(t, "fallback@example.com", testPassword)
	assert.NotEqual(t, uuid.Nil, id)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "fallback@example.com")
	assert.Contains(t, logger.warns[0], "hashid unavailable")
}

func TestPasswordsBeyondBcryptLimit(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", auth.MaxPasswordBytes+8)

	t.Run("signup rejects before mailing", func(t *testing.T) {
		_, err := f.flows.Signup(ctx, "long@example.com", long)
		require.Error(t, err)
		assert.True(t, auth.IsValidationError(err))

		fields, ok := auth.ValidationFields(err)
		require.True(t, ok)
		assert.Contains(t, fields, "password")
		assert.Empty(t, f.outbox.Messages())
	})

	t.Run("multibyte password is counted in bytes", func(t *testing.T) {
		_, err := f.flows.Signup(ctx, "runes@example.com", strings.Repeat("é", 40))
		assert.True(t, auth.IsValidationError(err))
	})

	t.Run("verify refuses a token carrying a long password", func(t *testing.T) {
		token, _, err := auth.MintSignupToken(f.tokens, nil, "long@example.com", long, time.Minute)
		require.NoError(t, err)

		_, err = f.flows.VerifySignup(ctx, token)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))

		_, err = f.repo.Users().FindByEmail(ctx, "long@example.com")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeIdentityNotFound))
	})

	t.Run("exactly at the limit registers", func(t *testing.T) {
		password := strings.Repeat("b", auth.MaxPasswordBytes)
		f.register(t, "edge@example.com", password)

		_, err := f.flows.Login(ctx, "edge@example.com", password)
		assert.NoError(t, err)
	})

	t.Run("reset rejects before decoding the token", func(t *testing.T) {
		_, err := f.flows.ResetPassword(ctx, "garbage", long, long)
		require.Error(t, err)
		assert.True(t, auth.IsValidationError(err))
	})
}

func TestLogin(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	userID := f.register(t, "user@example.com", testPassword)

	t.Run("success", func(t *testing.T) {
		res, err := f.flows.Login(ctx, "user@example.com", testPassword)
		require.NoError(t, err)
		assert.Equal(t, userID, res.UserID)
		assert.Equal(t, "user@example.com", res.Email)
		assert.True(t, f.clock.Now().Add(auth.DefaultSessionTokenTTL).Equal(res.ExpiresAt))

		session, err := f.flows.Authenticator().SessionFromToken(res.Token)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), session.GetUserID())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.flows.Login(ctx, "nobody@example.com", testPassword)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeNoSuchUser))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.flows.Login(ctx, "user@example.com", "wrong-password")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeBadCredentials))
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := f.flows.Login(ctx, "user", "1")
		assert.True(t, auth.IsValidationError(err))
	})

	t.Run("session expires", func(t *testing.T) {
		res, err := f.flows.Login(ctx, "user@example.com", testPassword)
		require.NoError(t, err)

		f.clock.Advance(auth.DefaultSessionTokenTTL + time.Second)
		_, err = f.flows.Authenticator().SessionFromToken(res.Token)
		assert.True(t, auth.IsTokenExpiredError(err))
	})
}

func TestForgotPassword(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	userID := f.register(t, "user@example.com", testPassword)
	f.outbox.Reset()

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.flows.ForgotPassword(ctx, "nobody@example.com")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeNoSuchUser))
		assert.Empty(t, f.outbox.Messages())
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := f.flows.ForgotPassword(ctx, "nobody")
		assert.True(t, auth.IsValidationError(err))
	})

	t.Run("mails a reset token", func(t *testing.T) {
		res, err := f.flows.ForgotPassword(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, userID, res.UserID)

		msg, ok := f.outbox.Last("user@example.com")
		require.True(t, ok)
		assert.Equal(t, mail.PasswordResetSubject, msg.Subject)

		id, _, err := auth.DecodeUserToken(f.tokens, auth.PurposeReset, f.tokenFromMail(t, "user@example.com"))
		require.NoError(t, err)
		assert.Equal(t, userID, id)
	})

	t.Run("delivery failure", func(t *testing.T) {
		f.outbox.Err = errors.New("smtp: timeout")
		defer func() { f.outbox.Err = nil }()

		_, err := f.flows.ForgotPassword(ctx, "user@example.com")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeDeliveryFailed))
	})
}

func TestResetPassword(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	userID := f.register(t, "user@example.com", testPassword)

	_, err := f.flows.ForgotPassword(ctx, "user@example.com")
	require.NoError(t, err)
	token := f.tokenFromMail(t, "user@example.com")

	t.Run("mismatch is checked before the token", func(t *testing.T) {
		_, err := f.flows.ResetPassword(ctx, "garbage", "new-password", "other-password")
		assert.True(t, auth.HasTextCode(err, auth.TextCodePasswordMismatch))
	})

	t.Run("short password", func(t *testing.T) {
		_, err := f.flows.ResetPassword(ctx, token, "12345", "12345")
		assert.True(t, auth.IsValidationError(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := f.flows.ResetPassword(ctx, "garbage", "new-password", "new-password")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))
	})

	t.Run("success", func(t *testing.T) {
		res, err := f.flows.ResetPassword(ctx, token, "new-password", "new-password")
		require.NoError(t, err)
		assert.Equal(t, userID, res.UserID)

		_, err = f.flows.Login(ctx, "user@example.com", testPassword)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeBadCredentials))

		_, err = f.flows.Login(ctx, "user@example.com", "new-password")
		assert.NoError(t, err)
	})

	t.Run("token is single use", func(t *testing.T) {
		_, err := f.flows.ResetPassword(ctx, token, "third-password", "third-password")
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))

		_, err = f.flows.Login(ctx, "user@example.com", "new-password")
		assert.NoError(t, err)
	})
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", testPassword)

	_, err := f.flows.ForgotPassword(ctx, "user@example.com")
	require.NoError(t, err)
	token := f.tokenFromMail(t, "user@example.com")

	f.clock.Advance(auth.DefaultResetTokenTTL + time.Second)

	_, err = f.flows.ResetPassword(ctx, token, "new-password", "new-password")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))

	_, err = f.flows.Login(ctx, "user@example.com", testPassword)
	assert.NoError(t, err)
}

func TestResetPasswordRejectsOtherPurposes(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", testPassword)

	login, err := f.flows.Login(ctx, "user@example.com", testPassword)
	require.NoError(t, err)

	_, err = f.flows.ResetPassword(ctx, login.Token, "new-password", "new-password")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidToken))
}

func TestResetPasswordUnknownUser(t *testing.T) {
	f := newFlowsFixture(t)

	token, _, err := auth.MintUserToken(f.tokens, auth.PurposeReset, uuid.New(), time.Minute)
	require.NoError(t, err)

	_, err = f.flows.ResetPassword(context.Background(), token, "new-password", "new-password")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeNoSuchUser))
}

func TestResetPasswordPrunesExpiredDenylist(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	f.register(t, "user@example.com", testPassword)

	_, err := f.flows.ForgotPassword(ctx, "user@example.com")
	require.NoError(t, err)
	first := f.tokenFromMail(t, "user@example.com")
	firstID := uuid.MustParse(decodePayload(t, first)["jti"].(string))

	_, err = f.flows.ResetPassword(ctx, first, "new-password", "new-password")
	require.NoError(t, err)

	consumed, err := f.repo.ConsumedTokens().IsConsumed(ctx, firstID)
	require.NoError(t, err)
	assert.True(t, consumed)

	f.clock.Advance(auth.DefaultResetTokenTTL + time.Minute)

	_, err = f.flows.ForgotPassword(ctx, "user@example.com")
	require.NoError(t, err)
	second := f.tokenFromMail(t, "user@example.com")

	_, err = f.flows.ResetPassword(ctx, second, "newer-password", "newer-password")
	require.NoError(t, err)

	consumed, err = f.repo.ConsumedTokens().IsConsumed(ctx, firstID)
	require.NoError(t, err)
	assert.False(t, consumed)
}

func TestFlowsHonourCancelledContext(t *testing.T) {
	f := newFlowsFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.flows.Signup(ctx, "user@example.com", testPassword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), auth.SignupMessage{}.Type())

	_, err = f.flows.Login(ctx, "user@example.com", testPassword)
	require.Error(t, err)
	assert.Contains(t, err.Error(), auth.LoginMessage{}.Type())

	_, err = f.flows.ForgotPassword(ctx, "user@example.com")
	assert.Error(t, err)

	assert.Empty(t, f.outbox.Messages())
}

func TestEndToEndFlow(t *testing.T) {
	f := newFlowsFixture(t)
	ctx := context.Background()
	email := "reader@example.com"

	signup, err := f.flows.Signup(ctx, email, testPassword)
	require.NoError(t, err)
	require.Equal(t, auth.SignupVerificationSent, signup.Outcome)

	verified, err := f.flows.VerifySignup(ctx, f.tokenFromMail(t, email))
	require.NoError(t, err)
	require.Equal(t, auth.VerifyCreated, verified.Outcome)

	login, err := f.flows.Login(ctx, email, testPassword)
	require.NoError(t, err)

	claims, err := f.tokens.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, verified.UserID.String(), claims.UserID())

	_, err = f.flows.ForgotPassword(ctx, email)
	require.NoError(t, err)

	reset, err := f.flows.ResetPassword(ctx, f.tokenFromMail(t, email), "brand-new-pass", "brand-new-pass")
	require.NoError(t, err)
	assert.Equal(t, verified.UserID, reset.UserID)

	_, err = f.flows.Login(ctx, email, testPassword)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeBadCredentials))

	relogin, err := f.flows.Login(ctx, email, "brand-new-pass")
	require.NoError(t, err)
	assert.Equal(t, verified.UserID, relogin.UserID)
}
