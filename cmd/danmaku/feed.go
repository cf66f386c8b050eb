package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/praise-danmaku/danmaku/internal/feed"
	"github.com/praise-danmaku/danmaku/internal/logging"
	"github.com/praise-danmaku/danmaku/internal/praise"
)

func newFeedCmd(root *rootOptions) *cobra.Command {
	var (
		host string
		port int
		rate float64
	)
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Serve a local praise stream for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Feed.Host = host
			}
			if flags.Changed("port") {
				cfg.Feed.Port = port
			}
			if flags.Changed("rate") {
				cfg.Feed.MessagesPerSecond = rate
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			doc, err := praise.LoadDocument(cfg.Feed.Praises)
			if err != nil {
				return fmt.Errorf("load praises: %w", err)
			}

			logger := logging.New(os.Stderr, cfg.Log.Level)
			opts := feed.DefaultOptions()
			opts.MessagesPerSecond = cfg.Feed.MessagesPerSecond
			opts.TokenMin = cfg.Feed.TokenMin
			opts.TokenMax = cfg.Feed.TokenMax

			srv := feed.NewServer(doc, opts, prometheus.NewRegistry(), logger)
			addr := net.JoinHostPort(cfg.Feed.Host, strconv.Itoa(cfg.Feed.Port))
			return srv.Serve(cmd.Context(), addr)
		},
	}

	f := cmd.Flags()
	f.StringVar(&host, "host", "", "listen host")
	f.IntVar(&port, "port", 0, "listen port")
	f.Float64Var(&rate, "rate", 0, "praises per second per client")
	return cmd
}
