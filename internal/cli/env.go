package cli

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Environment variables consulted when the matching flag is not set.
const (
	envBaseURL  = "GENCTL_BASE_URL"
	envAddr     = "GENCTL_ADDR"
	envLogLevel = "GENCTL_LOG_LEVEL"
	envConfig   = "GENCTL_CONFIG"
	envCORS     = "GENCTL_CORS_ORIGINS"
)

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// newLogger builds a console logger on w, or a JSON logger when asJSON is set.
func newLogger(w io.Writer, level string, asJSON bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	if asJSON {
		out = w
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// splitCSV splits a comma separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
