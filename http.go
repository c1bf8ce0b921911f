package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-auth-signup/middleware/jwtware"
)

// Messages sent back to HTTP clients
const (
	MsgVerificationSent    = "Verification link sent to %s"
	MsgEmailInUse          = "Email already in use."
	MsgAlreadyVerified     = "%s has been already been verified."
	MsgRegistrationDone    = "User Registration Successful."
	MsgLoginSuccessful     = "Login Successful"
	MsgEmailNotFound       = "Email does not exists."
	MsgInvalidPassword     = "Invalid password."
	MsgResetMailSent       = "Email has been sent to %s. Follow the instruction to set a new password."
	MsgPasswordMismatch    = "Password does not match!"
	MsgUserIDNotValid      = "User ID not valid."
	MsgPasswordUpdated     = "Password update successful!"
	MsgSomethingWentWrong  = "Something went wrong. Pls try again!"
	MsgInvalidToken        = "Invalid or expired token"
	MsgInvalidPayload      = "Invalid request payload"
	MsgBookHistoryValid    = "Book history valid"
	MsgAccessDeniedNoToken = "No token provided. Access denied!"
)

// RouteAuthenticator builds the access guard for protected routes and
// renders auth failures as JSON.
type RouteAuthenticator struct {
	tokens       TokenValidator
	cfg          Config
	listeners    []ValidationListener
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(tokens TokenValidator, cfg Config) (*RouteAuthenticator, error) {
	if tokens == nil {
		return nil, errors.New("token validator is required", errors.CategoryBadInput)
	}

	a := &RouteAuthenticator{
		tokens: tokens,
		cfg:    cfg,
		Logger: defLogger{},
	}
	a.ErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithValidationListeners adds listeners that run for every accepted session,
// a listener error rejects the request.
func (a *RouteAuthenticator) WithValidationListeners(listeners ...ValidationListener) *RouteAuthenticator {
	a.listeners = append(a.listeners, listeners...)
	return a
}

// ProtectedRoute returns the access guard. Requests without a valid session
// token are answered with 401 and never reach the handler.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	cfg := jwtware.Config{
		ErrorHandler:    a.ErrorHandler,
		TokenValidator:  jwtware.TokenValidatorFunc(a.validate),
		ContextEnricher: ContextEnricherAdapter,
	}
	if a.cfg != nil {
		cfg.AuthScheme = a.cfg.GetAuthScheme()
		cfg.ContextKey = a.cfg.GetContextKey()
	}
	RegisterValidationListeners(&cfg, a.listeners...)
	return jwtware.New(cfg)
}

func (a *RouteAuthenticator) validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	a.Logger.Debug("access denied: %v", err)
	return jwtware.DefaultErrorHandler(c, err)
}

// HTTPStatus maps a flow error to the status code and message sent to the
// client.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return router.StatusOK, ""
	case IsValidationError(err):
		return router.StatusBadRequest, MsgInvalidPayload
	case HasTextCode(err, TextCodePasswordMismatch):
		return router.StatusBadRequest, MsgPasswordMismatch
	case IsTokenError(err):
		return router.StatusBadRequest, MsgInvalidToken
	case HasTextCode(err, TextCodeNoSuchUser):
		return router.StatusUnauthorized, MsgEmailNotFound
	case HasTextCode(err, TextCodeBadCredentials):
		return router.StatusUnauthorized, MsgInvalidPassword
	case HasTextCode(err, TextCodeUnauthorized):
		return router.StatusUnauthorized, MsgAccessDeniedNoToken
	default:
		return http.StatusInternalServerError, MsgSomethingWentWrong
	}
}

// ErrorResponse writes err as a JSON failure body. Validation failures carry
// the per field messages under "errors".
func ErrorResponse(c router.Context, err error, logger Logger) error {
	status, message := HTTPStatus(err)

	body := router.ViewContext{
		"success": false,
		"message": message,
	}

	if fields, ok := ValidationFields(err); ok && IsValidationError(err) {
		body["errors"] = fields
	}

	if logger != nil {
		var richErr *errors.Error
		if status >= http.StatusInternalServerError {
			logger.Error("request failed: %v", err)
		} else if errors.As(err, &richErr) {
			logger.Debug("request rejected: %s %s", richErr.TextCode, print.MaybePrettyJSON(richErr.Metadata))
		}
	}

	return c.JSON(status, body)
}
