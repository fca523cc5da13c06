package config

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Handler returns a slog handler writing to w at c's level. The auto format
// is text when w is a terminal and JSON otherwise.
func (c Config) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.Level()}
	switch c.format(w) {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

func (c Config) format(w io.Writer) string {
	if c.Log.Format != FormatAuto {
		return c.Log.Format
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}
