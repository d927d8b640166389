package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-membership"
	"github.com/goliatone/go-membership/activitymap"
	"github.com/goliatone/go-membership/circles"
	"github.com/goliatone/go-membership/config"
	"github.com/goliatone/go-membership/logging"
	"github.com/goliatone/go-membership/persistence"
	"github.com/goliatone/go-membership/sessionredis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "membership: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logging.New(logging.Options{Level: cfg.LogLevel, Dev: cfg.Dev})
	if err != nil {
		return err
	}
	logger := logging.NewZapLogger(zl)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := persistence.OpenFromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := persistence.Migrate(ctx, db, cfg.GetDatabaseDriver(), logger.Named("migrate")); err != nil {
		return err
	}

	var repoOpts []membership.RepositoryManagerOption
	if cfg.SessionBackend == config.SessionBackendRedis {
		store, err := sessionredis.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			sessionredis.WithLogger(logger.Named("sessions")),
		)
		if err != nil {
			return err
		}
		defer store.Close()
		repoOpts = append(repoOpts, membership.WithSessionStore(store))
	}

	repo := membership.NewRepositoryManager(db, repoOpts...)
	repo.MustValidate()

	codec, err := membership.NewTokenCodec([]byte(cfg.GetSigningKey()),
		membership.WithTokenIssuer(cfg.GetIssuer()),
		membership.WithTokenLogger(logger.Named("tokens")),
	)
	if err != nil {
		return err
	}

	renderer, err := membership.NewEmailRenderer(nil)
	if err != nil {
		return err
	}

	activity := activitymap.NewSink(zl.Named("activity"))

	var mailer membership.Mailer = membership.LogMailer{Logger: logger.Named("mail")}
	if cfg.SMTPAddr != "" {
		mailer = membership.SMTPMailer{Addr: cfg.SMTPAddr}
	}

	dispatcher := membership.NewAsyncDispatcher(mailer).
		WithLogger(logger.Named("dispatcher")).
		WithActivitySink(activity).
		WithTimeout(cfg.DispatchTimeout).
		WithRetries(uint64(max(cfg.DispatchRetries, 0)), membership.DefaultDispatchBackoff)

	registrar := membership.NewRegisterAccountHandler(repo, codec, dispatcher).
		WithConfig(cfg).
		WithEmailRenderer(renderer).
		WithHashid(cfg.UseHashid).
		WithActivitySink(activity).
		WithLogger(logger.Named("registration"))

	verifier := membership.NewVerifyAccountHandler(repo, codec).
		WithActivitySink(activity).
		WithLogger(logger.Named("verification"))

	auther := membership.NewAuthenticator(repo).
		WithPasswordHasher(membership.NewBcryptHasher(cfg.GetPasswordHashCost())).
		WithActivitySink(activity).
		WithLogger(logger.Named("auth"))

	app := fiber.New(fiber.Config{
		AppName:               "membership",
		DisableStartupMessage: !cfg.Debug,
	})

	membership.RegisterAuthRoutes(app,
		membership.WithControllerHandlers(registrar, verifier, auther),
		membership.WithControllerRepository(repo),
		membership.WithControllerLogger(logger.Named("http")),
		membership.WithControllerDebug(cfg.Debug),
	)

	circles.RegisterRoutes(app, &circles.Controller{
		Repo:   circles.NewRepository(db),
		Logger: logger.Named("circles"),
	}, membership.SessionAuth(auther, logger.Named("http")))

	errc := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr)
		errc <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification drain failed", "error", err)
	}

	return nil
}
