package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-auth-signup"
	"github.com/goliatone/go-auth-signup/config"
	"github.com/goliatone/go-auth-signup/mail"
	"github.com/goliatone/go-auth-signup/middleware/jwtware"
)

type App struct {
	config *config.Config
	bunDB  *bun.DB
	flows  *auth.Flows
	tokens auth.TokenService
	srv    router.Server[*fiber.App]
	logger *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	if cfg.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybeHighlightJSON(map[string]any{
			"addr":      cfg.Addr,
			"driver":    cfg.Database.Driver,
			"issuer":    cfg.Tokens.Issuer,
			"mail_host": cfg.Mail.Host,
			"sealed":    cfg.SealKey != "",
		}))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.bunDB.Close()

	if err := WithAuthFlows(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	app.srv.Serve(cfg.Addr)

	sig := WaitExitSignal()
	app.GetLogger("app").Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.GetLogger("app").Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := auth.OpenDB(app.config.Database.Driver, app.config.Database.DSN, app.config.Debug)
	if err != nil {
		return err
	}

	if err := auth.Migrate(ctx, db, app.GetLogger("persistence")); err != nil {
		_ = db.Close()
		return err
	}

	app.bunDB = db
	return nil
}

func WithAuthFlows(ctx context.Context, app *App) error {
	mailer, err := mail.NewClient(app.config.MailConfig(), app.GetLogger("mail"))
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenServiceFromConfig(app.config, app.GetLogger("auth:tokens"))
	if err != nil {
		return err
	}

	repo := auth.NewRepositoryManager(app.bunDB)
	if err := repo.Validate(); err != nil {
		return err
	}

	deps := auth.DependenciesFromConfig(app.config, repo, tokens, mailer, app.GetLogger("auth:flows"))
	deps.Composer = mail.Composer{FrontendURL: app.config.Mail.FrontendURL}

	flows, err := auth.NewFlows(deps)
	if err != nil {
		return err
	}

	app.tokens = tokens
	app.flows = flows
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Debug,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))

	httpAuth, err := auth.NewHTTPAuthenticator(app.tokens, app.config)
	if err != nil {
		return err
	}
	httpAuth.WithLogger(app.GetLogger("auth:http"))

	sessionLogger := app.GetLogger("auth:session")
	httpAuth.WithValidationListeners(func(ctx router.Context, claims jwtware.AuthClaims) error {
		sessionLogger.Debug("session accepted user=%s path=%s", claims.UserID(), ctx.Path())
		return nil
	})

	auth.RegisterAuthRoutes(srv.Router(),
		auth.WithAuthFlows(app.flows),
		auth.WithGuard(httpAuth.ProtectedRoute()),
		auth.WithContextKey(app.config.GetContextKey()),
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithDebug(app.config.Debug),
	)

	app.srv = srv
	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
