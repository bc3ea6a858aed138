// Package audit assembles the classification audit trail from configuration:
// a rotating NDJSON file and/or a batching webhook, behind a non-blocking
// writer.
package audit

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/agrolog/apollo/internal/config"
	"github.com/agrolog/apollo/internal/model"
	"github.com/agrolog/apollo/internal/output"
	"github.com/agrolog/apollo/internal/output/async"
	"github.com/agrolog/apollo/internal/output/file"
	"github.com/agrolog/apollo/internal/output/multi"
)

// Trail is an output.Output that never blocks the caller. Records that do not
// fit in the buffer, and records of webhook batches that could not be
// delivered, are dropped and counted.
type Trail struct {
	out     *async.Async
	file    *file.Output
	dropped atomic.Int64
}

// Open builds the trail described by cfg. It returns (nil, nil) when no sink
// is configured.
func Open(cfg config.AuditConfig) (*Trail, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	detail, err := output.ParseDetail(cfg.Detail)
	if err != nil {
		return nil, fmt.Errorf("audit: %w", err)
	}

	t := &Trail{}
	var sinks []output.Output

	if cfg.File != "" {
		f, err := file.New(cfg.File, detail,
			file.WithMaxSizeMB(cfg.MaxSizeMB),
			file.WithMaxBackups(cfg.MaxBackups),
		)
		if err != nil {
			return nil, fmt.Errorf("audit: %w", err)
		}
		t.file = f
		sinks = append(sinks, f)
	}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg.WebhookURL,
			WithToken(cfg.WebhookToken),
			WithWebhookDetail(detail),
			WithWebhookBatch(cfg.WebhookBatch),
			WithFlushInterval(cfg.WebhookFlush),
			WithVersion(config.Version),
			WithLostBatch(func(n int) { t.dropped.Add(int64(n)) }),
		))
	}

	t.out = async.New(multi.New(sinks...),
		async.WithBufferSize(cfg.BufferSize),
		async.WithDropOnFull(),
		async.WithOnDrop(func(model.Record) { t.dropped.Add(1) }),
	)
	return t, nil
}

// Write enqueues a record.
func (t *Trail) Write(ctx context.Context, rec model.Record) error {
	return t.out.Write(ctx, rec)
}

// Rotate starts a new audit file. It is a no-op without a file sink.
func (t *Trail) Rotate() error {
	if t.file == nil {
		return nil
	}
	return t.file.Rotate()
}

// Dropped returns how many records were lost to a full buffer or to a failed
// webhook delivery.
func (t *Trail) Dropped() int64 {
	return t.dropped.Load()
}

// Close drains pending records and closes every sink.
func (t *Trail) Close() error {
	return t.out.Close()
}
