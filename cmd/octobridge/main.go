package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/octobridge/octobridge/pkg/device"
	"github.com/octobridge/octobridge/pkg/log"
	"github.com/octobridge/octobridge/pkg/recorder"
	"github.com/octobridge/octobridge/pkg/server"
	"github.com/octobridge/octobridge/pkg/snapshot"
	"github.com/octobridge/octobridge/pkg/storage"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
)

func main() {
	// init packages
	src := snapshot.ConfiguredSource()
	coord := snapshot.Configured(src)
	ctrl := device.ConfiguredControl()
	db := storage.Configured()

	// the device map and recorder subscribe to the coordinator before the
	// first refresh happens inside Run
	devices := device.NewMap(coord, ctrl, db)
	recorder.New(coord, db)

	// init server
	srv := server.Configured(coord, devices, db)

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := db.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	go func() {
		if err := coord.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "coordinator failed", "error", err)
			cancel()
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
