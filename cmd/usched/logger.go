package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	ctxlog "github.com/usched-go/usched/internal/log"
)

// newLogger mirrors the teacher's cmd/scheduler/main.go newLogger: tint for
// a human-readable local console, JSON everywhere else, both wrapped in
// ctxlog.ContextHandler so every record picks up a request id when one is
// in context.
func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
