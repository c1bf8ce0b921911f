package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// AuthFlows is what the HTTP controller needs from the auth flows
type AuthFlows interface {
	Signup(ctx context.Context, email, password string) (*SignupResult, error)
	VerifySignup(ctx context.Context, token string) (*VerifySignupResult, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (*InitializePasswordResetResult, error)
	ResetPassword(ctx context.Context, token, password1, password2 string) (*FinalizePasswordResetResult, error)
}

var _ AuthFlows = (*Flows)(nil)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// RegisterAuthRoutes mounts the auth API and the guarded user API on app
func RegisterAuthRoutes(app RouteRegistrar, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Signup, controller.Signup).
		SetName("auth.signup")
	app.Post(controller.Routes.Verification, controller.Verification).
		SetName("auth.verification")
	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login")
	app.Put(controller.Routes.ForgotPassword, controller.ForgotPassword).
		SetName("auth.forgot-password")
	app.Put(controller.Routes.ResetPassword+"/:token", controller.ResetPassword).
		SetName("auth.reset-password")

	if controller.Guard != nil {
		app.Get(controller.Routes.BookHistory, controller.BookHistory, controller.Guard).
			SetName("user.book-history")
	}

	app.Get(controller.Routes.Health, controller.Health).
		SetName("health")

	return controller
}

type AuthControllerRoutes struct {
	Signup         string
	Verification   string
	Login          string
	ForgotPassword string
	ResetPassword  string
	BookHistory    string
	Health         string
}

type AuthController struct {
	Debug      bool
	Logger     Logger
	Flows      AuthFlows
	Guard      router.MiddlewareFunc
	Routes     *AuthControllerRoutes
	ContextKey string
}

type AuthControllerOption func(*AuthController) *AuthController

// WithAuthFlows sets the flows backing the handlers
func WithAuthFlows(flows AuthFlows) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Flows = flows
		return ac
	}
}

// WithGuard protects the user API with mw
func WithGuard(mw router.MiddlewareFunc) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Guard = mw
		return ac
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if logger != nil {
			ac.Logger = logger
		}
		return ac
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

// WithContextKey sets the router locals key the guard stores claims under
func WithContextKey(key string) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		if key != "" {
			ac.ContextKey = key
		}
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:     defLogger{},
		ContextKey: DefaultContextKey,
		Routes: &AuthControllerRoutes{
			Signup:         "/auth/api/signup",
			Verification:   "/auth/api/verification",
			Login:          "/auth/api/login",
			ForgotPassword: "/auth/api/forgot-password",
			ResetPassword:  "/auth/api/reset-password",
			BookHistory:    "/user/api/book-history",
			Health:         "/health",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Flows == nil {
		panic("Missing AuthFlows in auth controller...")
	}

	return c
}

// SignupRequest payload
type SignupRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// VerificationRequest payload
type VerificationRequest struct {
	Token string `json:"token" form:"token"`
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

// ResetPasswordRequest payload, the token travels in the path
type ResetPasswordRequest struct {
	Password1 string `json:"password1" form:"password1"`
	Password2 string `json:"password2" form:"password2"`
}

func (a *AuthController) Signup(ctx router.Context) error {
	payload := new(SignupRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	res, err := a.Flows.Signup(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return ErrorResponse(ctx, err, a.Logger)
	}
	a.dump("signup", res)

	if res.Outcome == SignupAlreadyRegistered {
		return ctx.JSON(router.StatusOK, router.ViewContext{
			"success": false,
			"message": MsgEmailInUse,
		})
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success": true,
		"message": fmt.Sprintf(MsgVerificationSent, res.Email),
	})
}

func (a *AuthController) Verification(ctx router.Context) error {
	payload := new(VerificationRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	res, err := a.Flows.VerifySignup(ctx.Context(), payload.Token)
	if err != nil {
		return ErrorResponse(ctx, err, a.Logger)
	}
	a.dump("verification", res)

	if res.Outcome == VerifyAlreadyRegistered {
		return ctx.JSON(router.StatusOK, router.ViewContext{
			"success": false,
			"message": fmt.Sprintf(MsgAlreadyVerified, res.Email),
		})
	}

	return ctx.JSON(http.StatusCreated, router.ViewContext{
		"success": true,
		"id":      res.UserID.String(),
		"message": MsgRegistrationDone,
	})
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	res, err := a.Flows.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return ErrorResponse(ctx, err, a.Logger)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success":    true,
		"message":    MsgLoginSuccessful,
		"token":      res.Token,
		"expires_at": res.ExpiresAt,
		"user":       res.UserID.String(),
	})
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	res, err := a.Flows.ForgotPassword(ctx.Context(), payload.Email)
	if err != nil {
		return ErrorResponse(ctx, err, a.Logger)
	}
	a.dump("forgot-password", res)

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success": true,
		"message": fmt.Sprintf(MsgResetMailSent, res.Email),
	})
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	token := ctx.Param("token")

	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.badPayload(ctx, err)
	}

	res, err := a.Flows.ResetPassword(ctx.Context(), token, payload.Password1, payload.Password2)
	if err != nil {
		if HasTextCode(err, TextCodeNoSuchUser) {
			return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
				"success": false,
				"message": MsgUserIDNotValid,
			})
		}
		return ErrorResponse(ctx, err, a.Logger)
	}
	a.dump("reset-password", res)

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success": true,
		"id":      res.UserID.String(),
		"message": MsgPasswordUpdated,
	})
}

// BookHistory is the sample protected resource, it only answers once the
// guard has accepted the session token.
func (a *AuthController) BookHistory(ctx router.Context) error {
	session, err := GetRouterSession(ctx, a.ContextKey)
	if err != nil {
		return ErrorResponse(ctx, ErrUnauthorized, a.Logger)
	}

	id, err := session.GetUserUUID()
	if err != nil || id == uuid.Nil {
		return ErrorResponse(ctx, ErrUnauthorized, a.Logger)
	}

	return ctx.JSON(router.StatusOK, router.ViewContext{
		"success": true,
		"message": MsgBookHistoryValid,
		"user_id": id.String(),
	})
}

func (a *AuthController) Health(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, router.ViewContext{
		"status": "ok",
	})
}

func (a *AuthController) badPayload(ctx router.Context, err error) error {
	a.Logger.Debug("failed to parse request payload: %v", err)
	return ctx.JSON(router.StatusBadRequest, router.ViewContext{
		"success": false,
		"message": MsgInvalidPayload,
	})
}

func (a *AuthController) dump(label string, v any) {
	if !a.Debug {
		return
	}
	a.Logger.Debug("%s result:\n%s", label, print.MaybePrettyJSON(v))
}
