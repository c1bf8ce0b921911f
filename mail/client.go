package mail

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/mail"
	"net/url"
	"os"

	"github.com/dajohi/goemail"
	goerrors "github.com/goliatone/go-errors"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Config holds the SMTP settings. Mail is disabled when any of host, user or
// password is missing.
type Config struct {
	Host       string
	User       string
	Password   string
	From       string
	CertPath   string
	SkipVerify bool
}

// Client sends mail through an SMTPS server from a preset address.
type Client struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
	disabled    bool
	logger      Logger
}

// NewClient returns a new client.
func NewClient(cfg Config, logger Logger) (*Client, error) {
	if logger == nil {
		logger = nopLogger{}
	}

	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		logger.Info("mail: DISABLED")
		return &Client{disabled: true, logger: logger}, nil
	}

	u, err := url.Parse(fmt.Sprintf("smtps://%v:%v@%v", url.PathEscape(cfg.User), url.PathEscape(cfg.Password), cfg.Host))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid mail host")
	}

	logger.Info("mail host: smtps://%v:[password]@%v", cfg.User, cfg.Host)

	a, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid mail from address")
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.SkipVerify,
	}
	if cfg.CertPath != "" {
		cert, err := os.ReadFile(cfg.CertPath)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to read mail certificate")
		}
		certPool, err := x509.SystemCertPool()
		if err != nil {
			certPool = x509.NewCertPool()
		}
		certPool.AppendCertsFromPEM(cert)
		tlsConfig.RootCAs = certPool
	}

	smtp, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create SMTP client")
	}

	return &Client{
		smtp:        smtp,
		mailName:    a.Name,
		mailAddress: a.Address,
		logger:      logger,
	}, nil
}

// IsEnabled returns whether the mail server is enabled.
func (c *Client) IsEnabled() bool {
	return !c.disabled
}

// Send delivers a single message. A disabled client drops the message, the
// body is only written to the debug log so local runs can pick up tokens.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.disabled {
		c.logger.Info("mail disabled, dropped %q to %s", subject, to)
		c.logger.Debug("dropped mail to %s:\n%s", to, body)
		return nil
	}

	msg := goemail.NewMessage(c.mailAddress, subject, body)
	msg.SetName(c.mailName)
	msg.AddBCC(to)

	if err := c.smtp.Send(msg); err != nil {
		c.logger.Error("mail delivery to %s failed: %v", to, err)
		return err
	}
	return nil
}
