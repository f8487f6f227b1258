// Package service contains application services.
package service

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope for spans started by services.
const tracerName = "github.com/Sentinel-Gate/accessgate/internal/service"

// Default timeouts bounding store and cache waits.
const (
	DefaultEngineTimeout   = 2 * time.Second
	DefaultRecorderTimeout = 2 * time.Second
)

// defaultTracer follows the globally registered provider.
func defaultTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// withTimeout returns d unless it is non-positive, in which case def.
func withTimeout(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
