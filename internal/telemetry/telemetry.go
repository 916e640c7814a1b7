// Package telemetry wires go-metrics to an in-memory sink.
package telemetry

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-metrics"
)

// ServiceName prefixes every metric key.
const ServiceName = "heliokv"

const (
	sinkInterval = 10 * time.Second
	sinkRetain   = time.Minute
)

// New returns a metrics instance backed by an InmemSink. The sink is also
// returned so it can be rendered over HTTP.
func New() (*metrics.Metrics, *metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(sinkInterval, sinkRetain)
	m, err := metrics.New(config(), sink)
	if err != nil {
		return nil, nil, fmt.Errorf("create metrics: %w", err)
	}
	return m, sink, nil
}

// Discard returns a metrics instance that drops everything.
func Discard() *metrics.Metrics {
	m, err := metrics.New(config(), &metrics.BlackholeSink{})
	if err != nil {
		panic(fmt.Sprintf("telemetry: blackhole metrics: %v", err))
	}
	return m
}

func config() *metrics.Config {
	cfg := metrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	return cfg
}
