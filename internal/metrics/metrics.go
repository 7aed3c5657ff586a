// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics instruments the transaction engine and dispatcher with
// OpenTelemetry counters and histograms, exported over Prometheus — the
// same stack used elsewhere in the corpus for filesystem-operation and
// GCS-call metrics (common/otel_metrics.go), pointed at this protocol's
// events instead.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
)

var _ transaction.Recorder = (*Handle)(nil)

// opKey annotates every per-operation counter/histogram with the wire
// operation code, the way gcsfuse's otel_metrics.go annotates fs ops with
// FSOpKey.
const opKey = "op"

// ShutdownFn stops the metrics pipeline, flushing any buffered data.
type ShutdownFn func(ctx context.Context) error

// JoinShutdownFunc combines shutdown functions into one, mirroring
// common/telemetry.go's helper of the same name.
func JoinShutdownFunc(fns ...ShutdownFn) ShutdownFn {
	return func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			err = errors.Join(err, fn(ctx))
		}
		return err
	}
}

// Handle implements transaction.Recorder against an OpenTelemetry meter.
type Handle struct {
	meter metric.Meter

	attempts         metric.Int64Counter
	timeouts         metric.Int64Counter
	checksumFailures metric.Int64Counter
	bytesSent        metric.Int64Counter
	bytesReceived    metric.Int64Counter
	latency          metric.Float64Histogram
	peerLearned      metric.Int64Counter

	opAttrSets sync.Map // map[byte]metric.MeasurementOption

	shutdown ShutdownFn
}

// NewPrometheusHandle wires up a Prometheus exporter and registers the
// redirector's instrument set against it, returning the handle and the
// meter provider; Handle.Shutdown stops the pipeline on teardown (spec.md
// §4.G teardown).
func NewPrometheusHandle() (*Handle, *sdkmetric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	h, err := NewHandleForMeter(provider.Meter("etherdfs"))
	if err != nil {
		return nil, nil, err
	}
	h.shutdown = provider.Shutdown
	return h, provider, nil
}

// NewHandleForMeter builds a Handle against an arbitrary metric.Meter,
// letting tests exercise the recorder without a live Prometheus exporter.
func NewHandleForMeter(meter metric.Meter) (*Handle, error) {
	h := &Handle{meter: meter}

	var err error
	h.attempts, err = meter.Int64Counter("etherdfs_transaction_attempts_total",
		metric.WithDescription("Number of request frames transmitted per transaction attempt."))
	if err != nil {
		return nil, err
	}
	h.timeouts, err = meter.Int64Counter("etherdfs_transaction_timeouts_total",
		metric.WithDescription("Number of transactions that exhausted all attempts without a valid reply."))
	if err != nil {
		return nil, err
	}
	h.checksumFailures, err = meter.Int64Counter("etherdfs_checksum_failures_total",
		metric.WithDescription("Number of replies dropped for a checksum mismatch."))
	if err != nil {
		return nil, err
	}
	h.bytesSent, err = meter.Int64Counter("etherdfs_bytes_sent_total",
		metric.WithDescription("Bytes transmitted on request frames."))
	if err != nil {
		return nil, err
	}
	h.bytesReceived, err = meter.Int64Counter("etherdfs_bytes_received_total",
		metric.WithDescription("Bytes accepted on validated reply frames."))
	if err != nil {
		return nil, err
	}
	h.latency, err = meter.Float64Histogram("etherdfs_transaction_latency_ms",
		metric.WithDescription("Latency of a complete transaction, in milliseconds."),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 20, 50, 100, 200, 500, 1000))
	if err != nil {
		return nil, err
	}
	h.peerLearned, err = meter.Int64Counter("etherdfs_peer_learned_total",
		metric.WithDescription("Number of times peer-MAC auto-discovery completed."))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handle) attrsForOp(op byte) metric.MeasurementOption {
	v, ok := h.opAttrSets.Load(op)
	if ok {
		return v.(metric.MeasurementOption)
	}
	opt := metric.WithAttributeSet(attribute.NewSet(attribute.Int(opKey, int(op))))
	v, _ = h.opAttrSets.LoadOrStore(op, opt)
	return v.(metric.MeasurementOption)
}

func (h *Handle) RecordAttempt(op byte) {
	h.attempts.Add(context.Background(), 1, h.attrsForOp(op))
}

func (h *Handle) RecordTimeout(op byte) {
	h.timeouts.Add(context.Background(), 1, h.attrsForOp(op))
}

func (h *Handle) RecordChecksumFailure(op byte) {
	h.checksumFailures.Add(context.Background(), 1, h.attrsForOp(op))
}

func (h *Handle) RecordBytesSent(n int) {
	h.bytesSent.Add(context.Background(), int64(n))
}

func (h *Handle) RecordBytesReceived(n int) {
	h.bytesReceived.Add(context.Background(), int64(n))
}

func (h *Handle) RecordLatency(op byte, d time.Duration) {
	h.latency.Record(context.Background(), float64(d.Microseconds())/1000.0, h.attrsForOp(op))
}

func (h *Handle) RecordPeerLearned() {
	h.peerLearned.Add(context.Background(), 1)
}

// Shutdown stops the underlying meter provider, if one was created via
// NewPrometheusHandle.
func (h *Handle) Shutdown(ctx context.Context) error {
	if h.shutdown == nil {
		return nil
	}
	return h.shutdown(ctx)
}
