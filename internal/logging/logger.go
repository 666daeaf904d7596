package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"carwash/internal/config"

	"github.com/rs/zerolog"
)

// New builds the process logger. Empty settings mean JSON at info level on stdout.
// Output "both" tees stdout and the log file.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	console := strings.ToLower(strings.TrimSpace(cfg.Format)) == "console"
	wrap := func(w io.Writer) io.Writer {
		if console {
			return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}
		return w
	}

	var (
		output io.Writer
		closer io.Closer
	)

	switch mode := strings.ToLower(strings.TrimSpace(cfg.Output)); mode {
	case "", "stdout":
		output = wrap(os.Stdout)
	case "stderr":
		output = wrap(os.Stderr)
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=%s requires logging.file_path", mode)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closer = file
		// files always get JSON
		output = file
		if mode == "both" {
			output = zerolog.MultiLevelWriter(wrap(os.Stdout), file)
		}
	default:
		return nil, nil, fmt.Errorf("unknown logging.output %q", cfg.Output)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

// Component returns a child logger tagged with the component name.
func Component(logger *zerolog.Logger, name string) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	l := logger.With().Str("component", name).Logger()
	return &l
}
