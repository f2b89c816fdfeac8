// Copyright 2024 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command counter_emitter increments one sample counter at random intervals
// and exposes it, together with the usual process metrics, on a Prometheus
// /metrics endpoint. It exists to give scrape pipelines such as the
// OpenTelemetry Target Allocator a predictable target to discover.
package main

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/common/model"
	"github.com/prometheus/common/promlog"
	promlogflag "github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web/kingpinflag"

	"github.com/observability-demos/counter_emitter/emitter"
	"github.com/observability-demos/counter_emitter/server"
)

const appName = "counter_emitter"

var (
	metricsPath = kingpin.Flag(
		"web.telemetry-path",
		"Path under which to expose metrics.",
	).Default("/metrics").String()
	disableExporterMetrics = kingpin.Flag(
		"web.disable-exporter-metrics",
		"Exclude metrics about the process itself (promhttp_*, process_*, go_*).",
	).Bool()
	maxRequests = kingpin.Flag(
		"web.max-requests",
		"Maximum number of parallel scrape requests. Use 0 to disable.",
	).Default("40").Int()
	minInterval = kingpin.Flag(
		"emitter.min-interval",
		"Shortest pause between two counter increments.",
	).Default("1s").Duration()
	maxInterval = kingpin.Flag(
		"emitter.max-interval",
		"Longest pause between two counter increments.",
	).Default("20s").Duration()
	configFile = kingpin.Flag(
		"emitter.config.file",
		"Path to an optional YAML file with emitter settings. Overrides the interval flags.",
	).Default("").String()
	toolkitFlags = kingpinflag.AddFlags(kingpin.CommandLine, ":8080")
)

func main() {
	promlogConfig := &promlog.Config{}
	promlogflag.AddFlags(kingpin.CommandLine, promlogConfig)
	kingpin.Version(version.Print(appName))
	kingpin.CommandLine.UsageWriter(os.Stdout)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()
	logger := promlog.New(promlogConfig)

	level.Info(logger).Log("msg", "Starting "+appName, "version", version.Info())
	level.Info(logger).Log("msg", "Build context", "build_context", version.BuildContext())

	cfg := emitter.Config{
		MinInterval: model.Duration(*minInterval),
		MaxInterval: model.Duration(*maxInterval),
	}
	if *configFile != "" {
		c, err := emitter.LoadFile(*configFile)
		if err != nil {
			level.Error(logger).Log("msg", "Error loading emitter config", "err", err)
			os.Exit(1)
		}
		cfg = *c
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(versioncollector.NewCollector(appName))
	if !*disableExporterMetrics {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	em, err := emitter.New(cfg, log.With(logger, "component", "emitter"), reg)
	if err != nil {
		level.Error(logger).Log("msg", "Error creating emitter", "err", err)
		os.Exit(1)
	}

	srv, err := server.New(server.Config{
		Name:        "Counter Emitter",
		Description: "Sample application exposing one counter incremented at random intervals.",
		MetricsPath: *metricsPath,
		MaxRequests: *maxRequests,
		Registry:    reg,
		Flags:       toolkitFlags,
		Logger:      log.With(logger, "component", "web"),
	})
	if err != nil {
		level.Error(logger).Log("msg", "Error creating web server", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var g run.Group
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))
	g.Add(func() error {
		return em.Run(ctx)
	}, func(error) {
		cancel()
	})
	g.Add(func() error {
		return srv.Run()
	}, func(error) {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			level.Warn(logger).Log("msg", "Error shutting down web server", "err", err)
		}
	})

	if err := g.Run(); err != nil {
		var sig run.SignalError
		if errors.As(err, &sig) {
			level.Info(logger).Log("msg", "Received signal, exiting", "signal", sig.Signal)
			return
		}
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}
