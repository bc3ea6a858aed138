package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agrolog/apollo/internal/httpclient"
	"github.com/agrolog/apollo/internal/model"
	"github.com/agrolog/apollo/internal/output"
)

const (
	defaultWebhookBatch = 50
	defaultWebhookFlush = 5 * time.Second
	webhookTimeout      = 10 * time.Second
)

// Envelope is the body of one webhook delivery. Seq increases by one per
// batch, so a receiver can spot batches that were never delivered.
type Envelope struct {
	Service string         `json:"service"`
	Version string         `json:"version,omitempty"`
	Seq     uint64         `json:"seq"`
	SentAt  time.Time      `json:"sent_at"`
	Count   int            `json:"count"`
	Records []model.Record `json:"records"`
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithToken sends "Authorization: Bearer <token>" with every delivery.
func WithToken(token string) WebhookOption {
	return func(w *Webhook) { w.token = token }
}

// WithWebhookDetail strips records before they leave the process.
func WithWebhookDetail(d output.Detail) WebhookOption {
	return func(w *Webhook) { w.detail = d }
}

// WithWebhookBatch sets how many records are sent per delivery. Default: 50.
func WithWebhookBatch(n int) WebhookOption {
	return func(w *Webhook) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

// WithFlushInterval sets the longest a record waits for its batch to fill. Default: 5s.
func WithFlushInterval(d time.Duration) WebhookOption {
	return func(w *Webhook) {
		if d > 0 {
			w.flushInterval = d
		}
	}
}

// WithVersion stamps every envelope with the service version.
func WithVersion(v string) WebhookOption {
	return func(w *Webhook) { w.version = v }
}

// WithLostBatch is called with the record count of every batch that could
// not be delivered after retries.
func WithLostBatch(f func(n int)) WebhookOption {
	return func(w *Webhook) { w.onLost = f }
}

// WithRetry sets the retry budget and first backoff step of deliveries.
func WithRetry(maxRetries int, baseDelay time.Duration) WebhookOption {
	return func(w *Webhook) {
		w.clientOpts = append(w.clientOpts,
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithBaseDelay(baseDelay),
		)
	}
}

// Webhook delivers audit records in batches to an HTTP endpoint. A batch is
// sent when it is full, when the flush interval elapses, or on Close.
// Delivery retries 429 and 5xx responses; a batch that still fails is
// counted as lost.
type Webhook struct {
	url           string
	token         string
	version       string
	detail        output.Detail
	batchSize     int
	flushInterval time.Duration
	onLost        func(int)
	clientOpts    []httpclient.Option
	client        *httpclient.Client

	mu      sync.Mutex
	pending []model.Record
	seq     uint64
	timer   *time.Timer
}

// NewWebhook creates a webhook sink posting to url.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:           url,
		batchSize:     defaultWebhookBatch,
		flushInterval: defaultWebhookFlush,
		onLost:        func(int) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.client = httpclient.New(url, w.token,
		append([]httpclient.Option{httpclient.WithTimeout(webhookTimeout)}, w.clientOpts...)...)
	return w
}

// Write queues a record and delivers the batch once it is full.
func (w *Webhook) Write(ctx context.Context, rec model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, output.FormatRecord(rec, w.detail))
	if len(w.pending) >= w.batchSize {
		return w.flushLocked(ctx)
	}
	if len(w.pending) == 1 {
		w.timer = time.AfterFunc(w.flushInterval, w.flushOnTimer)
	}
	return nil
}

func (w *Webhook) flushOnTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 4*webhookTimeout)
	defer cancel()
	if err := w.flushLocked(ctx); err != nil {
		slog.Warn("audit webhook delivery failed", "error", err)
	}
}

// Close delivers whatever is still pending.
func (w *Webhook) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 4*webhookTimeout)
	defer cancel()
	return w.flushLocked(ctx)
}

// flushLocked sends the pending batch. Caller must hold w.mu.
func (w *Webhook) flushLocked(ctx context.Context) error {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pending) == 0 {
		return nil
	}

	batch := w.pending
	w.pending = nil
	w.seq++

	env := Envelope{
		Service: "apollo",
		Version: w.version,
		Seq:     w.seq,
		SentAt:  time.Now().UTC(),
		Count:   len(batch),
		Records: batch,
	}
	if err := w.client.PostJSON(ctx, "", env, nil); err != nil {
		w.onLost(len(batch))
		return fmt.Errorf("audit webhook: batch %d (%d records): %w", env.Seq, len(batch), err)
	}
	return nil
}
