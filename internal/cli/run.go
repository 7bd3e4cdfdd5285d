package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	goredis "github.com/redis/go-redis/v9"
	"github.com/reugn/go-heartbeat"
	"github.com/reugn/go-heartbeat/host"
	"github.com/reugn/go-heartbeat/internal/config"
	"github.com/reugn/go-heartbeat/promsink"
	"github.com/reugn/go-heartbeat/redis"
	"github.com/reugn/go-heartbeat/sampler"
	"github.com/reugn/go-heartbeat/store"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

type runFlags struct {
	configPath string
	interval   time.Duration
	heartbeat  time.Duration
	prometheus string
	noColor    bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample CPU usage until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if flags.noColor {
				color.NoColor = true
			}

			level, _ := cfg.SlogLevel()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
				&slog.HandlerOptions{Level: level}))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			counters := host.NewCounters()
			d := &daemon{
				cfg:    cfg,
				source: counters,
				out:    cmd.OutOrStdout(),
				logger: logger,
			}
			if cfg.Core1Split {
				d.core1Idle = counters.CoreIdle(1)
			}
			return d.run(ctx)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().DurationVarP(&flags.interval, "interval", "i", 0, "Sampling interval")
	cmd.Flags().DurationVar(&flags.heartbeat, "heartbeat", 0, "Heartbeat window length")
	cmd.Flags().StringVar(&flags.prometheus, "prometheus", "",
		"Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// loadConfig loads the configuration file and applies the flag overrides.
func loadConfig(cmd *cobra.Command, flags *runFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("interval") {
		cfg.Interval = flags.interval
	}
	if cmd.Flags().Changed("heartbeat") {
		cfg.Heartbeat = flags.heartbeat
	}
	if cmd.Flags().Changed("prometheus") {
		cfg.Sinks.Prometheus.Enabled = true
		cfg.Sinks.Prometheus.Listen = flags.prometheus
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// daemon drives a RuntimeSampler on a fixed interval and prints the
// collected heartbeat at the end of each window.
type daemon struct {
	cfg       *config.Config
	source    sampler.CounterSource
	core1Idle func() (uint32, error)
	out       io.Writer
	logger    *slog.Logger
}

func (d *daemon) run(ctx context.Context) error {
	metrics := store.New()
	sinks := []heartbeat.Sink{metrics}

	if d.cfg.Sinks.Prometheus.Enabled {
		promSink, err := promsink.New(promsink.Config{
			Namespace:         d.cfg.Sinks.Prometheus.Namespace,
			RuntimeCollectors: true,
		})
		if err != nil {
			return err
		}
		sinks = append(sinks, promSink)

		server := d.serveMetrics(promSink.Handler())
		defer d.shutdown(server)
	}

	if d.cfg.Sinks.Redis.Enabled {
		redisSink, closeRedis, err := d.newRedisSink(ctx)
		if err != nil {
			return err
		}
		defer closeRedis()
		sinks = append(sinks, redisSink)
	}

	sink := heartbeat.Tee(sinks...)
	opts := []sampler.Option{
		sampler.WithLogger(d.logger),
		sampler.WithZeroDeltaPolicy(d.cfg.Policy()),
		sampler.WithStackFreeBytes(host.StackFreeBytes),
		sampler.WithThreadMetrics(host.ThreadMetrics(sink, d.logger)),
	}
	if d.core1Idle != nil {
		opts = append(opts, sampler.WithCore1Idle(d.core1Idle))
	}
	runtimeSampler := sampler.New(d.source, sink, opts...)

	if err := runtimeSampler.Prime(); err != nil {
		return fmt.Errorf("failed to read baseline counters: %w", err)
	}
	d.logger.Info("Sampling started",
		slog.Duration("interval", d.cfg.Interval),
		slog.Duration("heartbeat", d.cfg.Heartbeat),
		slog.String("zero_delta_policy", d.cfg.Policy().String()))

	sampleTicker := time.NewTicker(d.cfg.Interval)
	defer sampleTicker.Stop()
	heartbeatTicker := time.NewTicker(d.cfg.Heartbeat)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-sampleTicker.C:
			if err := runtimeSampler.Sample(); err != nil {
				d.logger.Warn("Sample failed", slog.Any("error", err))
			}
		case <-heartbeatTicker.C:
			printHeartbeat(d.out, metrics.Collect())
		case <-ctx.Done():
			printSummary(d.out, metrics)
			d.logger.Info("Sampling stopped")
			return nil
		}
	}
}

func (d *daemon) serveMetrics(handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{
		Addr:              d.cfg.Sinks.Prometheus.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		d.logger.Info("Serving Prometheus metrics", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()
	return server
}

func (d *daemon) shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		d.logger.Warn("Failed to shut down metrics server", slog.Any("error", err))
	}
}

func (d *daemon) newRedisSink(ctx context.Context) (heartbeat.Sink, func(), error) {
	cfg := d.cfg.Sinks.Redis
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	sink, err := redis.NewHashSink(ctx, client, cfg.Hash, cfg.TTL, d.logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return sink, func() {
		if err := client.Close(); err != nil {
			d.logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}, nil
}
