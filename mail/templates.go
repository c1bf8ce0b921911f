package mail

import (
	"bytes"
	"net/url"
	"strings"
	"text/template"
	"time"
)

const (
	VerificationSubject  = "Account activation link."
	PasswordResetSubject = "Forgot password link."
)

// Frontend pages linked from the mails. The API itself only accepts the
// tokens on POST /auth/api/verification and PUT /auth/api/reset-password/:token.
const (
	ActivatePath      = "/auth/activate/"
	ResetPasswordPath = "/auth/reset-password/"
)

// TokenMessage is the data rendered into verification and reset mails
type TokenMessage struct {
	Email     string
	Token     string
	Link      string
	ExpiresIn time.Duration
}

var verificationText = `
Hello {{.Email}},

Use the token below to activate your account:

{{.Token}}
{{if .Link}}
Or open {{.Link}}
{{end}}
The token expires in {{.ExpiresIn}}.
`

var passwordResetText = `
Hello {{.Email}},

A password reset was requested for your account. Use the token below to set
a new password:

{{.Token}}
{{if .Link}}
Or open {{.Link}}
{{end}}
The token expires in {{.ExpiresIn}}. If you did not ask for a reset you can
ignore this message.
`

var (
	verificationTmpl = template.Must(
		template.New("verification").Parse(verificationText))
	passwordResetTmpl = template.Must(
		template.New("passwordReset").Parse(passwordResetText))
)

// Composer renders the token mails. FrontendURL, when set, is the origin of
// the web app serving ActivatePath and ResetPasswordPath; the mails then
// carry a link to those pages. Without it only the raw token is sent.
type Composer struct {
	FrontendURL string
}

// Verification returns the subject and body of the account activation mail
func (c Composer) Verification(email, token string, ttl time.Duration) (string, string, error) {
	body, err := populateTemplate(verificationTmpl, TokenMessage{
		Email:     email,
		Token:     token,
		Link:      c.link(ActivatePath, token),
		ExpiresIn: ttl,
	})
	return VerificationSubject, body, err
}

// PasswordReset returns the subject and body of the forgot password mail
func (c Composer) PasswordReset(email, token string, ttl time.Duration) (string, string, error) {
	body, err := populateTemplate(passwordResetTmpl, TokenMessage{
		Email:     email,
		Token:     token,
		Link:      c.link(ResetPasswordPath, token),
		ExpiresIn: ttl,
	})
	return PasswordResetSubject, body, err
}

func (c Composer) link(route, token string) string {
	if c.FrontendURL == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimRight(c.FrontendURL, "/") + route + url.PathEscape(token))
	if err != nil {
		return ""
	}
	return u.String()
}

func populateTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
