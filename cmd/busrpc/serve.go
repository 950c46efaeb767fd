package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	rpc "github.com/RidgeA/bus-rpc"
	"github.com/RidgeA/bus-rpc/internal/metrics"
	"github.com/RidgeA/bus-rpc/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var metricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "address to expose Prometheus metrics on, empty to disable",
	Value:   ":9090",
	EnvVars: []string{"BUSRPC_METRICS_ADDR"},
}

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "serve the Text service until interrupted",
	Flags:  []cli.Flag{metricsAddrFlag},
	Action: serve,
}

func serve(ctx *cli.Context) error {
	logger, err := newLogger(ctx)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	bus, err := openBus(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()

	var collector types.MetricsCollector = metrics.NewNop()
	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector = metrics.NewPrometheus(reg, "")

		srv := startMetricsServer(addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := rpc.NewServer(bus,
		rpc.SetConfig(cfg),
		rpc.SetName(ctx.String(nameFlag.Name)),
		rpc.SetLogger(logger),
		rpc.SetMetrics(collector),
	)
	if err != nil {
		return err
	}

	if err := registerText(server); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Run(runCtx)
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger types.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return srv
}
