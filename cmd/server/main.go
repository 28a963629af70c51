package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gookit/color"
	"github.com/oarkflow/squealx"
	"github.com/oarkflow/squealx/connection"
	"github.com/oarkflow/squealx/drivers/sqlite"
	"go.uber.org/zap"

	"github.com/oarkflow/whitebox"
	"github.com/oarkflow/whitebox/pkg/config"
	"github.com/oarkflow/whitebox/pkg/http/handlers"
	"github.com/oarkflow/whitebox/pkg/libs"
	"github.com/oarkflow/whitebox/pkg/objects"
)

func main() {
	if err := run(); err != nil {
		color.Red.Println(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfgSource, err := config.New(".env", true, nil)
	if err != nil {
		return err
	}
	objects.Config = cfgSource
	(&config.Config{}).Load()

	cfg, err := libs.LoadConfig(objects.Config)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	objects.Layout = "layouts/main"
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ViewsLayout:           objects.Layout,
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: cfg.Env != "development",
		ProxyHeader:           objects.Config.GetString("app.proxy_header"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plugin := whitebox.NewPlugin(
		whitebox.WithApp(app),
		whitebox.WithConfig(cfg),
		whitebox.WithDB(db),
		whitebox.WithLogger(log),
	)
	if err := plugin.Register(ctx); err != nil {
		return err
	}
	defer func() { _ = plugin.Close() }()
	plugin.StartJanitor(ctx)

	addr := objects.Config.GetString("app.addr", ":3000")
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openDatabase() (*squealx.DB, error) {
	c := objects.Config
	driver := c.GetString("db.driver", "sqlite")
	if driver == "sqlite" || driver == "sqlite3" {
		return sqlite.Open(c.GetString("db.path", "whitebox.db"), "sqlite")
	}
	db, _, err := connection.FromConfig(squealx.Config{
		Driver:   driver,
		Host:     c.GetString("db.host", "localhost"),
		Port:     c.GetInt("db.port", 5432),
		Username: c.GetString("db.user"),
		Password: c.GetString("db.password"),
		Database: c.GetString("db.name"),
	})
	return db, err
}
