package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/actioncodes/protocol-core/types"
)

// protocolName is attached to every log line this package emits, so a
// multi-service deployment (relay, ctl, and whatever else is colocated on a
// host) can be filtered down to actioncodes output alone.
const protocolName = "actioncodes"

// Setup configures the standard library logger to emit structured JSON and returns
// the underlying slog.Logger for richer logging within the service. All log lines
// carry the protocol name, the service name, and the environment when provided.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey {
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			}
			if attr.Key == slog.LevelKey {
				level := strings.ToUpper(attr.Value.String())
				return slog.String("severity", level)
			}
			if attr.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{
		slog.String("protocol", protocolName),
		slog.String("service", strings.TrimSpace(service)),
	}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	// Bridge the standard library logger so existing packages continue to work.
	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}

// WithChain returns a logger scoped to a single chain adapter. The relay's
// writeError attaches it to every failed-request log line so an operator
// running more than one chain adapter can filter logs by chain without
// grepping message text.
func WithChain(logger *slog.Logger, chain types.Chain) *slog.Logger {
	return logger.With(slog.String("chain", string(chain)))
}
