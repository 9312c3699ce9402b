package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nasa/GMSEC-API-sub012/connmgr"
	"github.com/nasa/GMSEC-API-sub012/message"
	"github.com/nasa/GMSEC-API-sub012/metric"
)

type heartbeatOptions struct {
	mission     string
	component   string
	rate        int16
	resource    time.Duration
	duration    time.Duration
	metricsAddr string
}

func newHeartbeatCmd(root *rootFlags) *cobra.Command {
	opts := &heartbeatOptions{}

	cmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Publish heartbeat (and optionally resource) messages",
		Long: "Connect with the configured middleware (mw-id, default loopback) and\n" +
			"publish heartbeats until interrupted or --duration elapses.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHeartbeat(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mission, "mission", "MISSION", "MISSION-ID standard field")
	f.StringVar(&opts.component, "component", appName, "COMPONENT standard field")
	f.Int16Var(&opts.rate, "rate", 30, "Heartbeat PUB-RATE in seconds")
	f.DurationVar(&opts.resource, "resource-rate", 0, "Resource message rate, 0 disables")
	f.DurationVar(&opts.duration, "duration", 0, "Stop after this long, 0 runs until interrupted")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func runHeartbeat(cmd *cobra.Command, root *rootFlags, opts *heartbeatOptions) error {
	logger := slog.Default()

	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	registry := metric.NewMetricsRegistry()
	if opts.metricsAddr != "" {
		srv := metric.NewServer(opts.metricsAddr, "", registry)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(shutdownCtx)
		}()
		logger.Info("Serving metrics", "url", srv.Address())
	}

	cm, err := connmgr.New(cfg, connmgr.WithLogger(logger), connmgr.WithMetrics(registry))
	if err != nil {
		return err
	}
	if err := cm.Initialize(ctx); err != nil {
		return err
	}
	defer func() { _ = cm.Cleanup(context.Background()) }()

	cm.SetStandardFields(
		message.NewStringField("MISSION-ID", opts.mission),
		message.NewStringField("COMPONENT", opts.component),
	)

	if err := cm.StartHeartbeatService(message.NewI16Field("PUB-RATE", opts.rate)); err != nil {
		return err
	}
	if opts.resource > 0 {
		if err := cm.StartResourceService(opts.resource, 0, 0); err != nil {
			return err
		}
	}

	cmd.Printf("Publishing heartbeats every %ds over %s\n", opts.rate, cm.Library())
	<-ctx.Done()
	logger.Info("Stopping", "health", cm.Health().Status)
	return nil
}
