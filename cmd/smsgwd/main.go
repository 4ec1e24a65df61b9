// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package main contains smsgwd's main function to start the gateway
// service: Postgres-backed storage, HTTP ingress, and SMTP notification of
// assembled SMS/call activity.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/smsgwd/smsgwd/internal"
	jaegerClient "github.com/smsgwd/smsgwd/internal/clients/jaeger"
	pgClient "github.com/smsgwd/smsgwd/internal/clients/postgres"
	"github.com/smsgwd/smsgwd/internal/email"
	"github.com/smsgwd/smsgwd/internal/env"
	internalpg "github.com/smsgwd/smsgwd/internal/postgres"
	"github.com/smsgwd/smsgwd/internal/server"
	httpserver "github.com/smsgwd/smsgwd/internal/server/http"

	ingresshttp "github.com/smsgwd/smsgwd/ingress/http"
	"github.com/smsgwd/smsgwd/logger"
	"github.com/smsgwd/smsgwd/notifier"
	"github.com/smsgwd/smsgwd/notifier/smtp"
	"github.com/smsgwd/smsgwd/processor"
	"github.com/smsgwd/smsgwd/store"
	storepg "github.com/smsgwd/smsgwd/store/postgres"
)

const (
	svcName       = "smsgwd"
	envPrefix     = "SMSGWD_"
	envPrefixHTTP = "SMSGWD_HTTP_"
	defDB         = "smsgwd"
	defHTTPPort   = "9021"
)

type config struct {
	LogLevel        string        `env:"SMSGWD_LOG_LEVEL"         envDefault:"info"`
	DeviceTable     string        `env:"SMSGWD_DEVICE_TABLE"      envDefault:"/config/devices.json"`
	From            string        `env:"SMSGWD_FROM_ADDR"         envDefault:""`
	JaegerURL       string        `env:"SMSGWD_JAEGER_URL"        envDefault:""`
	TraceRatio      float64       `env:"SMSGWD_TRACE_RATIO"       envDefault:"1.0"`
	CleanupInterval time.Duration `env:"SMSGWD_CLEANUP_INTERVAL"  envDefault:"1s"`
	InstanceID      string        `env:"SMSGWD_INSTANCE_ID"       envDefault:""`
}

func main() {
	root := &cobra.Command{
		Use:   svcName,
		Short: "smsgwd ingests SMS PDUs and voice-call events and mails assembled activity",
	}
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the ingestion service",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg, err := env.NewConfig[config]()
	if err != nil {
		return fmt.Errorf("failed to load %s configuration: %w", svcName, err)
	}

	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	domainLogger := logger.New(os.Stdout)

	var exitCode int
	defer logger.ExitWithError(&exitCode)

	dbConfig, err := env.NewConfig[pgClient.Config](env.Options{Prefix: envPrefix})
	if err != nil {
		bootLogger.Error(fmt.Sprintf("failed to load %s database configuration: %s", svcName, err))
		exitCode = 1
		return nil
	}
	if dbConfig.Name == "" {
		dbConfig.Name = defDB
	}

	db, err := pgClient.Setup(dbConfig, *storepg.Migration())
	if err != nil {
		bootLogger.Error(err.Error())
		exitCode = 1
		return nil
	}
	defer db.Close()

	tracer, shutdownTracing := setupTracing(ctx, cfg, bootLogger)
	defer shutdownTracing()

	database := internalpg.NewDatabase(db, tracer)
	st := storepg.New(database)

	devices, err := processor.LoadDeviceTable(cfg.DeviceTable)
	if err != nil {
		bootLogger.Error(err.Error())
		exitCode = 1
		return nil
	}

	ec, err := env.NewConfig[email.Config]()
	if err != nil {
		bootLogger.Error(fmt.Sprintf("failed to load email configuration: %s", err))
		exitCode = 1
		return nil
	}
	agent, err := email.New(&ec)
	if err != nil {
		bootLogger.Error(fmt.Sprintf("failed to create email agent: %s", err))
		exitCode = 1
		return nil
	}
	notif := smtp.New(agent, cfg.From)

	svc := newService(st, notif, devices, domainLogger)

	if err := svc.Initialize(ctx); err != nil {
		bootLogger.Error(fmt.Sprintf("restart recovery failed: %s", err))
		exitCode = 1
		return nil
	}

	registerOccupancyGauge(svc)

	httpConfig := server.Config{Port: defHTTPPort}
	if err := env.Parse(&httpConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		bootLogger.Error(fmt.Sprintf("failed to load %s HTTP server configuration: %s", svcName, err))
		exitCode = 1
		return nil
	}
	hs := httpserver.New(ctx, cancel, svcName, httpConfig, ingresshttp.MakeHandler(svc, bootLogger), bootLogger)

	g.Go(func() error {
		return runCleanupLoop(ctx, svc, cfg.CleanupInterval, domainLogger)
	})

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, bootLogger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		bootLogger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
	}

	// Final forced flush so buffered notifications aren't lost on shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := svc.Cleanup(shutdownCtx, time.Now(), true); err != nil {
		bootLogger.Error(fmt.Sprintf("final cleanup flush failed: %s", err))
	}

	return nil
}

func newService(st store.Store, nf notifier.Notifier, devices processor.DeviceTable, log logger.Logger) processor.Service {
	svc := processor.New(st, nf, devices, log)
	var service processor.Service = svc
	service = processor.LoggingMiddleware(service, log)
	counter, latency := internal.MakeMetrics(svcName, "processor")
	service = processor.MetricsMiddleware(service, counter, latency)
	return service
}

func setupTracing(ctx context.Context, cfg config, bootLogger *slog.Logger) (trace.Tracer, func()) {
	if cfg.JaegerURL == "" {
		return otel.Tracer(svcName), func() {}
	}

	tp, err := jaegerClient.NewProvider(ctx, svcName, cfg.JaegerURL, cfg.InstanceID, cfg.TraceRatio)
	if err != nil {
		bootLogger.Warn(fmt.Sprintf("tracing disabled, failed to init: %s", err))
		return otel.Tracer(svcName), func() {}
	}

	return tp.Tracer(svcName), func() {
		if err := tp.Shutdown(ctx); err != nil {
			bootLogger.Error(fmt.Sprintf("error shutting down tracer provider: %s", err))
		}
	}
}

func registerOccupancyGauge(svc processor.Service) {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: svcName,
		Subsystem: "splitter",
		Name:      "bucket_occupancy",
		Help:      "Number of PDU parts currently buffered awaiting reassembly.",
	}, func() float64 {
		return float64(svc.Occupancy())
	})
	prometheus.MustRegister(gauge)
}

// runCleanupLoop drives Cleanup on a fixed tick until ctx is cancelled, the
// only goroutine permitted to feed or drain the Splitter, per the
// concurrency model.
func runCleanupLoop(ctx context.Context, svc processor.Service, interval time.Duration, log logger.Logger) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := svc.Cleanup(ctx, now, false); err != nil {
				log.Warn(fmt.Sprintf("cleanup tick failed: %s", err))
			}
		}
	}
}
