package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/docrag-mcp/internal/mcp"
	"github.com/dshills/docrag-mcp/internal/metrics"
	"github.com/dshills/docrag-mcp/internal/pipeline"
)

var preload bool

func init() {
	serveCmd.Flags().BoolVar(&preload, "preload", false, "load every domain index at startup instead of on first use")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the MCP server on stdin/stdout.

Examples:
  # Serve with a config file
  docrag serve --config docrag.yaml

  # Load every index before accepting requests
  docrag serve --preload

Send SIGHUP to reload every domain index from disk after a rebuild.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		srv, err := startMetrics(cfg.Metrics.Addr, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if preload {
		if err := p.Preload(ctx); err != nil {
			logger.Warn("index preload failed", zap.Error(err))
		}
	}

	go reloadOnHangup(ctx, p, logger)

	logger.Info("MCP server ready, listening on stdio", zap.String("version", version))
	err = mcp.NewServer(p, version).Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// reloadOnHangup reloads every domain index each time the process receives SIGHUP
func reloadOnHangup(ctx context.Context, p *pipeline.Pipeline, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("reloading indices")
			if err := p.Reload(ctx, ""); err != nil {
				logger.Warn("index reload failed", zap.Error(err))
			}
		}
	}
}

func startMetrics(addr string, logger *zap.Logger) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return srv, nil
}
