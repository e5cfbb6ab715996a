package internal

import (
	"io"
	"log/slog"

	"github.com/hacker-sp/RTOps-Management-Platform/internal/observability"
)

// SetupLogging replaces the default slog handler according to the
// configured level and format, writing to the given output. Verbose
// mode forces debug level regardless of configuration.
//
// Returns a cleanup function that restores the original handler.
func SetupLogging(output io.Writer, level, format string) func() {
	if IsVerbose() {
		level = "debug"
	}

	original := slog.Default()
	handler := observability.NewHandler(output, format, level)
	slog.SetDefault(slog.New(handler))

	return func() {
		slog.SetDefault(original)
	}
}
