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

// Package emitter increments a sample counter at random intervals so that
// there is always something for a scraper to observe.
package emitter

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
)

// Emitter owns the sample counter and the loop that increments it. Construct
// it with New and share the metrics with the web handler through the
// registry, not through the Emitter itself.
type Emitter struct {
	logger log.Logger

	minInterval time.Duration
	maxInterval time.Duration
	rnd         *rand.Rand

	// sleep suspends for d or until ctx is done. Swapped out in tests to
	// drive the loop deterministically.
	sleep func(ctx context.Context, d time.Duration) error

	counter       prometheus.Counter
	lastIncrement prometheus.Gauge
}

// New validates cfg, creates the emitter and registers its metrics with reg.
func New(cfg Config, logger log.Logger, reg prometheus.Registerer) (*Emitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	e := &Emitter{
		logger:      logger,
		minInterval: time.Duration(cfg.MinInterval),
		maxInterval: time.Duration(cfg.MaxInterval),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       sleepContext,
		counter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "some_counter_total",
			Help: "A sample counter incremented once per loop iteration.",
		}),
		lastIncrement: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "counter_emitter_last_increment_timestamp_seconds",
			Help: "Unix timestamp of the most recent counter increment.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{e.counter, e.lastIncrement} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("registering emitter metrics: %w", err)
			}
		}
	}
	return e, nil
}

// Run increments the counter forever, sleeping a random duration between
// increments. It only returns once ctx is cancelled, and then always nil:
// shutdown is not an error for this loop.
func (e *Emitter) Run(ctx context.Context) error {
	level.Info(e.logger).Log("msg", "Starting emit loop", "min_interval", e.minInterval, "max_interval", e.maxInterval)
	for {
		d := e.interval()
		if err := e.sleep(ctx, d); err != nil {
			level.Info(e.logger).Log("msg", "Emit loop stopping")
			return nil
		}
		e.counter.Inc()
		e.lastIncrement.SetToCurrentTime()
		level.Debug(e.logger).Log("msg", "Incremented counter", "slept", d)
	}
}

// interval draws a uniformly random duration from the closed range
// [minInterval, maxInterval]. Only called from the Run goroutine, so the
// unsynchronized rand source is fine.
func (e *Emitter) interval() time.Duration {
	span := int64(e.maxInterval-e.minInterval) + 1
	return e.minInterval + time.Duration(e.rnd.Int63n(span))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
