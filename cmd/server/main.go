package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-users"
	"github.com/goliatone/go-users/activitymap"
	"github.com/goliatone/go-users/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("users"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	log := lgr.GetLogger("server")

	cfg, err := config.New()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		log.Error("database open error", "error", err)
		os.Exit(1)
	}
	defer sqldb.Close()

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	if err := createTables(ctx, db); err != nil {
		log.Error("database migration error", "error", err)
		os.Exit(1)
	}

	repo := users.NewRepositoryManager(db)
	repo.MustValidate()

	activity := users.ActivitySinkFunc(func(ctx context.Context, event users.ActivityEvent) error {
		record := activitymap.Normalize(event)
		lgr.GetLogger("activity").Info("activity",
			"actor_id", record.ActorID,
			"verb", record.Verb,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"channel", record.Channel,
			"occurred_at", record.OccurredAt,
		)
		return nil
	})

	provider := users.NewUserProvider(repo.Users(), repo.Users()).
		WithLogger(lgr.GetLogger("identity"))

	auther := users.NewAuthenticator(provider, repo.Tokens(), cfg).
		WithLogger(lgr.GetLogger("auth")).
		WithActivitySink(activity)

	routeAuth, err := users.NewHTTPAuthenticator(auther, cfg)
	if err != nil {
		log.Error("http authenticator error", "error", err)
		os.Exit(1)
	}
	routeAuth.Logger = lgr.GetLogger("http")

	app := fiber.New(fiber.Config{
		AppName:               "go-users",
		DisableStartupMessage: !cfg.Debug,
	})

	users.RegisterAPIRoutes(app,
		users.WithControllerDebug(cfg.Debug),
		users.WithControllerLogger(lgr.GetLogger("api")),
		users.WithControllerRepo(repo),
		users.WithControllerAuther(routeAuth),
		users.WithControllerLoginAuther(auther),
		users.WithControllerActivitySink(activity),
		users.WithControllerContextKey(cfg.GetContextKey()),
	)

	go func() {
		<-ctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}()

	log.Info("listening", "addr", cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func createTables(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*users.User)(nil),
		(*users.Token)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
