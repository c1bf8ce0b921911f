package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-auth-signup"
	"github.com/goliatone/go-auth-signup/mail"
)

// EnvPrefix is prepended to every variable name
const EnvPrefix = "AUTH_"

// Config is the service configuration, read from AUTH_ prefixed environment
// variables.
type Config struct {
	Addr  string `env:"ADDR" envDefault:":8080"`
	Debug bool   `env:"DEBUG"`

	Database Database `envPrefix:"DB_"`
	Tokens   Tokens
	Mail     Mail `envPrefix:"MAIL_"`

	PasswordCost int    `env:"PASSWORD_COST" envDefault:"10"`
	SealKey      string `env:"SEAL_KEY"`
	UseHashid    bool   `env:"USE_HASHID"`
	ContextKey   string `env:"CONTEXT_KEY" envDefault:"user"`
	AuthScheme   string `env:"SCHEME" envDefault:"Bearer"`
}

type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"file:auth.db?cache=shared"`
}

type Tokens struct {
	SigningKey        string        `env:"SIGNING_KEY"`
	SignupSigningKey  string        `env:"SIGNUP_SIGNING_KEY"`
	ResetSigningKey   string        `env:"RESET_SIGNING_KEY"`
	SessionSigningKey string        `env:"SESSION_SIGNING_KEY"`
	Issuer            string        `env:"ISSUER" envDefault:"go-auth-signup"`
	SignupTTL         time.Duration `env:"SIGNUP_TOKEN_TTL" envDefault:"5m"`
	ResetTTL          time.Duration `env:"RESET_TOKEN_TTL" envDefault:"5m"`
	SessionTTL        time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"30m"`
}

type Mail struct {
	Host       string `env:"HOST"`
	User       string `env:"USER"`
	Password   string `env:"PASSWORD"`
	From       string `env:"FROM" envDefault:"Auth <noreply@example.com>"`
	CertPath   string `env:"CERT_PATH"`
	SkipVerify bool   `env:"SKIP_VERIFY"`
	// FrontendURL is the web app that posts mailed tokens back to the API
	FrontendURL string `env:"FRONTEND_URL"`
}

var _ auth.Config = (*Config)(nil)

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom reads the configuration from environ instead of the process
// environment. Keys must carry the AUTH_ prefix.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values env tags can not express
func (c *Config) Validate() error {
	if c.Tokens.SigningKey == "" {
		return auth.ErrMissingSigningKey
	}

	switch c.Database.Driver {
	case auth.DriverSQLite, auth.DriverPostgres:
	default:
		return goerrors.New("unsupported database driver", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"driver": c.Database.Driver})
	}

	if c.PasswordCost < auth.MinPasswordCost {
		c.PasswordCost = auth.MinPasswordCost
	}

	for name, ttl := range map[string]time.Duration{
		"signup":  c.Tokens.SignupTTL,
		"reset":   c.Tokens.ResetTTL,
		"session": c.Tokens.SessionTTL,
	} {
		if ttl <= 0 {
			return goerrors.New("token TTL must be positive", goerrors.CategoryBadInput).
				WithMetadata(map[string]any{"token": name, "ttl": ttl.String()})
		}
	}

	return nil
}

func (c *Config) GetSigningKey() string {
	return c.Tokens.SigningKey
}

func (c *Config) GetSigningKeyFor(purpose auth.TokenPurpose) string {
	switch purpose {
	case auth.PurposeSignup:
		return c.Tokens.SignupSigningKey
	case auth.PurposeReset:
		return c.Tokens.ResetSigningKey
	case auth.PurposeSession:
		return c.Tokens.SessionSigningKey
	}
	return ""
}

func (c *Config) GetSealKey() string {
	return c.SealKey
}

func (c *Config) GetIssuer() string {
	return c.Tokens.Issuer
}

func (c *Config) GetSignupTokenTTL() time.Duration {
	return c.Tokens.SignupTTL
}

func (c *Config) GetResetTokenTTL() time.Duration {
	return c.Tokens.ResetTTL
}

func (c *Config) GetSessionTokenTTL() time.Duration {
	return c.Tokens.SessionTTL
}

func (c *Config) GetPasswordCost() int {
	return c.PasswordCost
}

func (c *Config) GetContextKey() string {
	return c.ContextKey
}

func (c *Config) GetAuthScheme() string {
	return c.AuthScheme
}

func (c *Config) GetUseHashid() bool {
	return c.UseHashid
}

// MailConfig returns the SMTP settings for mail.NewClient
func (c *Config) MailConfig() mail.Config {
	return mail.Config{
		Host:       c.Mail.Host,
		User:       c.Mail.User,
		Password:   c.Mail.Password,
		From:       c.Mail.From,
		CertPath:   c.Mail.CertPath,
		SkipVerify: c.Mail.SkipVerify,
	}
}
