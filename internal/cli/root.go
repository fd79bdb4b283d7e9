// Package cli implements the logsieve command line entrypoint.
package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logsieve/logsieve/internal/service"
	"github.com/logsieve/logsieve/pkg/config"
	"github.com/logsieve/logsieve/pkg/logging"
	"github.com/logsieve/logsieve/pkg/miner"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "logsieve",
	Short: "Online log template learning and anomaly scoring service",
	Long: `Logsieve ingests preprocessed log batches from the message bus,
classifies each line against an incremental template model, flags likely
anomalies, persists results to the search index and signals when the
upstream model should be retrained.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(logger, cfg, miner.NewExact())
	if err != nil {
		logger.Error("Failed to assemble pipeline", zap.Error(err))
		return err
	}

	startMetricsServer(ctx, logger, cfg.MetricsAddr)

	logger.Info("Starting logsieve",
		zap.String("nats_url", cfg.NATS.URL),
		zap.String("es_endpoint", cfg.Elastic.Endpoint),
		zap.Strings("fail_keywords", cfg.Scoring.FailKeywords),
	)
	return svc.Run(ctx)
}

func startMetricsServer(ctx context.Context, logger *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
