// Command apiq queries declarative API sources from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/api-connector/pkg/logging"
	"github.com/Sternrassler/api-connector/pkg/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Environment variables used as flag defaults.
const (
	envRedisURL  = "APIQ_REDIS_URL"
	envUserAgent = "APIQ_USER_AGENT"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree writing results to out and logs to errOut.
func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		logLevel    string
		metricsAddr string
	)

	rootCmd := &cobra.Command{
		Use:           "apiq",
		Short:         "Query HTTP APIs as tables",
		Long:          `apiq turns a YAML source definition into tables: it pages through the API, decodes each response and prints the rows as JSON lines.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := logging.ConfigFromEnv()
			if err != nil {
				return err
			}
			if logLevel != "" {
				level, err := logging.ParseLevel(logLevel)
				if err != nil {
					return err
				}
				cfg.Level = level
			}
			cfg.Output = errOut
			logging.Setup(cfg)

			if metricsAddr != "" {
				serveMetrics(cmd.Context(), metricsAddr)
			}
			return nil
		},
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, disabled); default from "+logging.EnvLevel)
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")

	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(queryCmd())

	return rootCmd
}

// serveMetrics exposes /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
