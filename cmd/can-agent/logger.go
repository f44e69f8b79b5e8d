package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/go-can-telemetry/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.ParseLevel(level), os.Stderr).With("app", "can-agent")
	logging.Set(l)
	return l
}
