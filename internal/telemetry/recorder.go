package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DispatchRecorder 以 OTel 指标记录分发结果（实现 dispatch.Recorder）
type DispatchRecorder struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewDispatchRecorder 在 meter 上创建分发计数器与耗时直方图
func NewDispatchRecorder(meter metric.Meter) (*DispatchRecorder, error) {
	requests, err := meter.Int64Counter("webserver.dispatch.requests",
		metric.WithDescription("Dispatched requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch counter: %w", err)
	}

	duration, err := meter.Float64Histogram("webserver.dispatch.duration",
		metric.WithDescription("Dispatch duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatch histogram: %w", err)
	}

	return &DispatchRecorder{requests: requests, duration: duration}, nil
}

// RecordDispatch implements dispatch.Recorder.
func (r *DispatchRecorder) RecordDispatch(route string, status int, duration time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	r.requests.Add(ctx, 1, attrs)
	r.duration.Record(ctx, duration.Seconds(), attrs)
}
