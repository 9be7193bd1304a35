// Command quotes-server streams synthetic stock quotes to UDP subscribers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire-go/metrics"
	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/server"
	"github.com/quotewire/quotewire-go/source"
	"github.com/quotewire/quotewire-go/tickers"
)

// config holds the env-overridable defaults; flags win over both.
type config struct {
	Port        uint16 `env:"QUOTES_PORT" envDefault:"3000"`
	TickersFile string `env:"QUOTES_TICKERS" envDefault:"all_tickers.txt"`
	MetricsPort uint16 `env:"QUOTES_METRICS_PORT" envDefault:"0"`
	LogLevel    string `env:"QUOTES_LOG_LEVEL" envDefault:"debug"`
	LogPretty   bool   `env:"QUOTES_LOG_PRETTY" envDefault:"false"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// a missing .env is fine
	_ = godotenv.Load()

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:          "quotes-server",
		Short:        "Stream stock quotes to UDP subscribers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfg)
		},
	}

	cmd.Flags().Uint16Var(&cfg.Port, "port", cfg.Port, "TCP port accepting subscription requests")
	cmd.Flags().StringVar(&cfg.TickersFile, "tickers", cfg.TickersFile, "file with one ticker per line")
	cmd.Flags().Uint16Var(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "Prometheus metrics port, 0 disables")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	cmd.Flags().BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable log output")

	return cmd
}

func run(cfg config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zl := qlog.NewZerologConsole(level, cfg.LogPretty)
	logger := qlog.NewZerolog(zl)

	list, err := tickers.ReadFile(cfg.TickersFile)
	if err != nil {
		return err
	}
	zl.Info().Int("tickers", len(list)).Uint16("port", cfg.Port).Msg("starting quotes server")

	opts := []server.Option{
		server.WithPort(cfg.Port),
		server.WithLogger(logger),
	}
	if cfg.MetricsPort > 0 {
		reg := prometheus.NewRegistry()
		opts = append(opts, server.WithMetrics(metrics.NewServer(reg)))
		go serveMetrics(zl, cfg.MetricsPort, reg)
	}

	src := source.New(list, source.WithLogger(logger))
	core := server.New(src, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return core.Run(ctx)
}

func serveMetrics(zl zerolog.Logger, port uint16, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	zl.Info().Str("addr", srv.Addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil {
		zl.Error().Err(err).Msg("metrics server failed")
	}
}
