package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/velmark/draftline/internal/app"
	"github.com/velmark/draftline/internal/config"
	"github.com/velmark/draftline/internal/lib/logger/sl"
	"github.com/velmark/draftline/internal/lib/logger/slogpretty"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting draftline", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	application := app.New(
		log,
		cfg.Address,
		cfg.StoragePath,
		cfg.Timeout,
		cfg.TokenTTL,
		getSecret(),
		getRootPass(),
		cfg.TmpDir,
		cfg.SourceDir,
		cfg.Session.Capacity,
		cfg.WorkDir,
		cfg.RenderBin,
		cfg.RenderThreads,
		cfg.RenderTimeout,
		cfg.QueueLen,
		cfg.CostPerMinute,
		cfg.ReapTTL,
		cfg.ReapFreq,
		cfg.GatewayAddress,
		cfg.GatewayTimeout,
		cfg.BillingAddress,
		cfg.BillingTimeout,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run export worker
	go func() {
		if err := application.Export.Run(ctx); err != nil {
			log.Error("export worker stopped with error", sl.Err(err))
		}
	}()

	// Run server
	go func() {
		application.Router.MustRun()
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	<-stop

	application.Stop()
	log.Info("Gracefully stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func getSecret() []byte {
	secret := os.Getenv("SECRET")

	if secret == "" {
		panic("secret not specified")
	}

	return []byte(secret)
}

func getRootPass() []byte {
	pass := os.Getenv("ROOT_PASS")

	if pass == "" {
		panic("root password is not specified")
	}

	return []byte(pass)
}
