package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// SlogManager manages slog-based logging with optional Graylog shipping.
type SlogManager struct {
	logger *slog.Logger
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

type setupOptions struct {
	console  io.Writer
	graylog  io.Writer
	provider ContextProvider
}

// Option configures Setup.
type Option func(*setupOptions)

// WithConsole also writes human-readable records to w.
func WithConsole(w io.Writer) Option {
	return func(o *setupOptions) {
		o.console = w
	}
}

// WithGraylog writes one JSON record per Write to w, typically a GELF writer.
func WithGraylog(w io.Writer) Option {
	return func(o *setupOptions) {
		o.graylog = w
	}
}

// WithContextProvider appends the provider's attributes to every record.
func WithContextProvider(p ContextProvider) Option {
	return func(o *setupOptions) {
		o.provider = p
	}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when it is
// non-nil and to stderr otherwise; options add console and Graylog outputs.
// Attributes attached with ContextWith are added to every record.
func (m *SlogManager) Setup(file io.Writer, level string, opts ...Option) {
	var so setupOptions
	for _, opt := range opts {
		opt(&so)
	}
	if file == nil && so.console == nil {
		so.console = os.Stderr
	}

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if so.console != nil {
		handlers = append(handlers, slog.NewTextHandler(so.console, handlerOpts))
	}
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}
	if so.graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(so.graylog, handlerOpts))
	}

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), so.provider))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}
