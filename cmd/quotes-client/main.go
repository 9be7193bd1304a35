// Command quotes-client subscribes to a quotes server and prints the
// received quotes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quotewire/quotewire-go/client"
	"github.com/quotewire/quotewire-go/internal/ctxtime"
	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/tickers"
)

const (
	connectAttempts   = 3
	connectRetryDelay = time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()

	var (
		port        uint16
		tickersFile string
		logLevel    string
		logPretty   bool
	)

	cmd := &cobra.Command{
		Use:          "quotes-client <server_address>",
		Short:        "Subscribe to a quotes server and print quotes",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], port, tickersFile, logLevel, logPretty)
		},
	}

	cmd.Flags().Uint16VarP(&port, "port", "p", 0, "local UDP port for quotes, 0 picks one")
	cmd.Flags().StringVarP(&tickersFile, "tickers", "t", "tickers.txt", "file with one ticker per line")
	cmd.Flags().StringVar(&logLevel, "log-level", "debug", "log level")
	cmd.Flags().BoolVar(&logPretty, "log-pretty", false, "human-readable log output")

	return cmd
}

func run(serverAddr string, port uint16, tickersFile, logLevel string, logPretty bool) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zl := qlog.NewZerologConsole(level, logPretty)
	logger := qlog.NewZerolog(zl)

	list, err := tickers.ReadFile(tickersFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a transient refusal right after server start is worth a few retries
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		c := client.New(serverAddr, port, list, client.WithLogger(logger))
		lastErr = c.Run(ctx)
		if lastErr == nil || errors.Is(lastErr, client.ErrTooManyErrors) {
			return lastErr
		}
		zl.Warn().Err(lastErr).Int("attempt", attempt).Msg("client run failed")
		if err := ctxtime.Sleep(ctx, connectRetryDelay); err != nil {
			return lastErr
		}
	}
	return lastErr
}
