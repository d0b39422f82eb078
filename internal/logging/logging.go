// Package logging builds the structured *slog.Logger the CLI hands to the
// artefact store, the one core component that takes a logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options controls logger construction.
type Options struct {
	// JSON selects a machine-readable handler instead of the default
	// human-readable text handler. CLI read commands set this from --json.
	JSON bool
	// Level is the minimum level that will be emitted.
	Level slog.Level
	// Writer overrides the destination, defaulting to os.Stderr so stdout
	// stays free for machine-readable command output.
	Writer io.Writer
}

// New builds a *slog.Logger per opts. Logs never go to stdout: read
// commands reserve stdout for the --json payload.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything, used by tests and by
// library callers that supply no logger of their own.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
