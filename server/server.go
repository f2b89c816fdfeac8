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

// Package server exposes the metrics registry over HTTP with a landing page,
// using the exporter-toolkit listener for TLS, auth and systemd sockets.
package server

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/prometheus/exporter-toolkit/web"
)

var errNoRegistry = errors.New("server: registry must not be nil")

// Config describes the HTTP surface of the emitter.
type Config struct {
	Name        string // Application name shown on the landing page.
	Description string
	MetricsPath string // Path the metrics handler is mounted on, e.g. /metrics.
	MaxRequests int    // Maximum in-flight scrapes, 0 for unlimited.

	Registry *prometheus.Registry
	Flags    *web.FlagConfig
	Logger   log.Logger
}

// Server serves the metrics endpoint and the landing page.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	srv    *http.Server
	logger log.Logger
}

// New builds the HTTP handlers. The returned server does not listen until
// Run is called.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errNoRegistry
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNopLogger()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	handlerOpts := promhttp.HandlerOpts{
		ErrorLog:            stdlog.New(log.NewStdlibAdapter(level.Error(cfg.Logger)), "", 0),
		MaxRequestsInFlight: cfg.MaxRequests,
	}
	metricsHandler := promhttp.InstrumentMetricHandler(
		cfg.Registry, promhttp.HandlerFor(cfg.Registry, handlerOpts),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, metricsHandler)

	if cfg.MetricsPath != "/" {
		landingPage, err := web.NewLandingPage(web.LandingConfig{
			Name:        cfg.Name,
			Description: cfg.Description,
			Version:     version.Info(),
			Links: []web.LandingLinks{
				{
					Address: cfg.MetricsPath,
					Text:    "Metrics",
				},
			},
		})
		if err != nil {
			return nil, err
		}
		mux.Handle("/", landingPage)
	}

	return &Server{
		cfg:    cfg,
		mux:    mux,
		srv:    &http.Server{Handler: mux},
		logger: cfg.Logger,
	}, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run listens on the configured addresses and serves until Shutdown or a
// listener error. A failure to bind is returned immediately. A graceful
// Shutdown is not reported as an error.
func (s *Server) Run() error {
	if err := web.ListenAndServe(s.srv, s.cfg.Flags, s.logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully drains in-flight scrapes.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
