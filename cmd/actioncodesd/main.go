// Command actioncodesd runs the actioncodes relay: an HTTP front end over
// the actioncode façade. It is a thin transport wrapper, not part of the
// specified protocol core.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/actioncodes/protocol-core/actioncode"
	"github.com/actioncodes/protocol-core/chainadapter/solana"
	"github.com/actioncodes/protocol-core/config"
	"github.com/actioncodes/protocol-core/observability/logging"
	"github.com/actioncodes/protocol-core/relay"
	"github.com/actioncodes/protocol-core/types"
)

// runMetricsServer starts a dedicated listener for /metrics when the
// operator configured an address distinct from the main listen address, so
// a Prometheus scrape config can be pointed at a port that isn't also
// serving signed requests.
func runMetricsServer(logger *slog.Logger, server *relay.Server, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", server.MetricsHandler())
	logger.Info("actioncodesd metrics listening", slog.String("address", address))
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.Error("metrics server exited", logging.MaskField("error", err.Error()))
	}
}

func main() {
	configPath := flag.String("config", "actioncodesd.toml", "path to the relay's TOML config file")
	env := flag.String("env", "production", "deployment environment, included on every log line")
	flag.Parse()

	logger := logging.Setup("actioncodesd", *env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", logging.MaskField("error", err.Error()))
		os.Exit(1)
	}

	protocol := actioncode.NewProtocol(cfg.CodeGeneration.ToTypes())
	for _, chain := range cfg.Relay.SupportedChains {
		switch types.Chain(chain) {
		case "solana":
			protocol.RegisterAdapter("solana", solana.New(nil))
		default:
			logger.Warn("no built-in adapter for configured chain; skipping", slog.String("chain", chain))
		}
	}

	server := relay.NewServer(relay.Config{
		Protocol:       protocol,
		AdminJWTSecret: cfg.Relay.AdminJWTSecret,
		Logger:         logger,
	})

	if addr := cfg.Relay.MetricsAddress; addr != "" && addr != cfg.Relay.ListenAddress {
		go runMetricsServer(logger, server, addr)
	}

	logger.Info("actioncodesd listening", slog.String("address", cfg.Relay.ListenAddress))
	if err := http.ListenAndServe(cfg.Relay.ListenAddress, server.Router()); err != nil {
		logger.Error("server exited", logging.MaskField("error", err.Error()))
		os.Exit(1)
	}
}
