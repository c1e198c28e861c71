package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"supportconsole/internal/cluster"
	"supportconsole/internal/config"
	"supportconsole/internal/jobrunner"
	"supportconsole/internal/logger"
	"supportconsole/internal/observability"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
)

// deps is what every command needs once configuration is loaded.
type deps struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Instruments

	shutdown []func(context.Context) error
}

func (d *deps) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(d.shutdown) - 1; i >= 0; i-- {
		if err := d.shutdown[i](ctx); err != nil {
			d.logger.Warn("shutdown failed", "error", err)
		}
	}
}

// newGateway is replaced in tests.
var newGateway = func(access config.ClusterAccess, log *slog.Logger) (cluster.Gateway, error) {
	return cluster.NewKubeGatewayForAccess(access, log)
}

// setup loads configuration, the logger and optional telemetry.
func setup(cmd *cobra.Command) (*deps, error) {
	log := logger.New(cmd.ErrOrStderr(), viper.GetString("log_level"), viper.GetString("log_format"))

	cfg, err := config.Load(viper.GetString("env_file"))
	if err != nil {
		return nil, err
	}
	d := &deps{cfg: cfg, logger: log}

	shutdownTracer, err := observability.InitTracer(cmd.Context(), "wgfctl", cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	d.shutdown = append(d.shutdown, shutdownTracer)

	if addr := viper.GetString("metrics_addr"); addr != "" {
		if err := d.serveMetrics(addr); err != nil {
			d.close()
			return nil, err
		}
	}
	return d, nil
}

func (d *deps) serveMetrics(addr string) error {
	handler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return err
	}
	d.shutdown = append(d.shutdown, shutdownMetrics)

	inst, err := observability.NewInstruments(otel.Meter(observability.MeterName))
	if err != nil {
		return err
	}
	d.metrics = inst

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	d.shutdown = append(d.shutdown, srv.Shutdown)
	go func() {
		d.logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

func (d *deps) newRunner() (*jobrunner.Runner, error) {
	gw, err := newGateway(d.cfg.Cluster, d.logger)
	if err != nil {
		return nil, err
	}
	return jobrunner.New(gw, jobrunner.Config{
		PollInterval: d.cfg.Jobs.PollInterval,
		Timeout:      d.cfg.Jobs.Timeout,
	}, jobrunner.WithLogger(d.logger), jobrunner.WithMetrics(d.metrics)), nil
}
