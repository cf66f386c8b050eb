package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praise-danmaku/danmaku/internal/app"
	"github.com/praise-danmaku/danmaku/internal/headless"
	"github.com/praise-danmaku/danmaku/internal/logging"
	"github.com/praise-danmaku/danmaku/internal/metrics"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		url         string
		demand      string
		offline     bool
		noPrompt    bool
		plain       bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the praise stream and show captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("url") {
				cfg.Stream.URL = url
			}
			if flags.Changed("demand") {
				cfg.Stream.Demand = demand
				cfg.UI.Prompt = false
			}
			if offline {
				cfg.Offline.Enabled = true
			}
			if noPrompt {
				cfg.UI.Prompt = false
			}
			if flags.Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closeLog, err := logging.Setup(cfg.Log.File, cfg.Log.Level)
			if err != nil {
				return err
			}
			defer closeLog()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			m := metrics.New(reg)
			if cfg.Metrics.Addr != "" {
				go serveMetrics(cmd.Context(), cfg.Metrics.Addr, reg, logger)
			}

			logger.Info("starting viewer", "url", cfg.Stream.URL, "offline", cfg.Offline.Enabled)
			if plain || !term.IsTerminal(int(os.Stdout.Fd())) {
				return headless.Run(cmd.Context(), headless.Options{
					Config:  cfg,
					Out:     cmd.OutOrStdout(),
					Metrics: m,
					Logger:  logger,
				})
			}
			return app.Run(cmd.Context(), cfg, app.Deps{Metrics: m, Logger: logger})
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "", "praise stream WebSocket URL")
	f.StringVar(&demand, "demand", "", "demand sent on connect; skips the prompt")
	f.BoolVar(&offline, "offline", false, "show built-in praises without connecting")
	f.BoolVar(&noPrompt, "no-prompt", false, "send the configured demand without asking")
	f.BoolVar(&plain, "plain", false, "print captions as lines instead of the TUI")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
}
