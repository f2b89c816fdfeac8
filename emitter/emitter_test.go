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

package emitter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/require"
)

// scrapeCounter fetches the exposition document from handler, requires it to
// parse, and returns the current value of some_counter_total.
func scrapeCounter(t *testing.T, handler http.Handler) float64 {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rec.Body)
	require.NoError(t, err, "exposition output must be well-formed")

	mf, ok := mfs["some_counter_total"]
	require.True(t, ok, "some_counter_total missing from exposition output")
	require.Len(t, mf.Metric, 1)
	return mf.Metric[0].GetCounter().GetValue()
}

func TestNewRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(DefaultConfig, nil, reg)
	require.NoError(t, err)

	require.Equal(t, float64(0), testutil.ToFloat64(e.counter))
	require.Equal(t, float64(0), scrapeCounter(t, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Registering a second emitter on the same registry must fail.
	_, err = New(DefaultConfig, nil, reg)
	require.Error(t, err)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{MinInterval: 0, MaxInterval: model.Duration(time.Second)}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{
		MinInterval: model.Duration(10 * time.Second),
		MaxInterval: model.Duration(5 * time.Second),
	}, nil, nil)
	require.Error(t, err)
}

func TestIntervalStaysWithinBounds(t *testing.T) {
	e, err := New(DefaultConfig, nil, nil)
	require.NoError(t, err)

	const samples = 20000
	counts := make(map[int]int)
	for i := 0; i < samples; i++ {
		d := e.interval()
		require.GreaterOrEqual(t, d, 1*time.Second)
		require.LessOrEqual(t, d, 20*time.Second)
		counts[int(d/time.Second)]++
	}

	// The draw is uniform over the range, so each one-second bucket should
	// hold roughly samples/19. A 20% band is over six sigma wide here.
	expected := float64(samples) / 19
	for bucket := 1; bucket <= 19; bucket++ {
		require.InDelta(t, expected, counts[bucket], expected*0.2, "bucket %ds", bucket)
	}
}

func TestIntervalFixedRange(t *testing.T) {
	cfg := Config{
		MinInterval: model.Duration(5 * time.Second),
		MaxInterval: model.Duration(5 * time.Second),
	}
	e, err := New(cfg, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.Equal(t, 5*time.Second, e.interval())
	}
}

// TestRunInterleavedScrapes drives the loop with a gated sleep so each
// increment happens on demand: five increments interleaved with five scrapes
// must end with a reading of exactly five.
func TestRunInterleavedScrapes(t *testing.T) {
	reg := prometheus.NewRegistry()
	e, err := New(DefaultConfig, nil, reg)
	require.NoError(t, err)

	release := make(chan struct{})
	e.sleep = func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	for i := 1; i <= 5; i++ {
		release <- struct{}{}
		require.Eventually(t, func() bool {
			return testutil.ToFloat64(e.counter) == float64(i)
		}, time.Second, time.Millisecond)
		require.Equal(t, float64(i), scrapeCounter(t, handler))
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean stop, not an error")
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	require.Equal(t, float64(5), scrapeCounter(t, handler))
}

// TestConcurrentScrapes hammers the metrics handler while the loop runs at
// full speed. Every response must parse and readings must never go backwards.
func TestConcurrentScrapes(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{
		MinInterval: model.Duration(time.Millisecond),
		MaxInterval: model.Duration(2 * time.Millisecond),
	}
	e, err := New(cfg, nil, reg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	last := float64(-1)
	for i := 0; i < 100; i++ {
		v := scrapeCounter(t, handler)
		require.GreaterOrEqual(t, v, last, "counter went backwards")
		last = v
	}

	cancel()
	require.NoError(t, <-done)
}
