package logging

import (
	"log/slog"
	"os"
)

// Setup initializes the global slog logger with JSON output to stdout. Debug
// records are kept outside production.
func Setup(appEnv string) {
	slog.SetDefault(slog.New(NewStdoutHandler(appEnv)))
}

func NewStdoutHandler(appEnv string) slog.Handler {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}
