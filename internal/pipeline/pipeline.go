package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agrolog/apollo/internal/model"
	"github.com/agrolog/apollo/internal/output"
)

const defaultBatchSize = 16

// Classifier abstracts the engine for testing.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
	ClassifyBatch(ctx context.Context, texts []string) ([]model.Classification, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many messages go to ClassifyBatch at once. Default: 16.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithSource sets the Source field of emitted records. Default: "cli".
func WithSource(s string) Option {
	return func(p *Pipeline) { p.source = s }
}

// Pipeline reads messages, classifies them and writes one record per message.
type Pipeline struct {
	classifier Classifier
	output     output.Output
	batchSize  int
	source     string
	now        func() time.Time

	processed atomic.Int64
	skipped   atomic.Int64
}

// New creates a Pipeline from the given components.
func New(cls Classifier, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		classifier: cls,
		output:     out,
		batchSize:  defaultBatchSize,
		source:     "cli",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run classifies every message in r. Messages that fail are logged and
// skipped; only read, output and context errors stop the run.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	batch := make([]Message, 0, p.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.processBatch(ctx, batch)
		batch = batch[:0]
		return err
	}

	err := readMessages(r, func(m Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, m)
		if len(batch) >= p.batchSize {
			return flush()
		}
		return nil
	}, func(err error) {
		slog.Warn("skipping input line", "error", err)
		p.skipped.Add(1)
	})
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if err := flush(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// processBatch classifies a batch in one call. If the batch fails, each
// message is retried alone so one bad message does not sink the others.
func (p *Pipeline) processBatch(ctx context.Context, msgs []Message) error {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}

	results, err := p.classifier.ClassifyBatch(ctx, texts)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("batch classification failed, falling back to single messages", "size", len(msgs), "error", err)
		return p.processEach(ctx, msgs)
	}

	for i, m := range msgs {
		if err := p.write(ctx, m, results[i]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) processEach(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		c, err := p.classifier.Classify(ctx, m.Text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("skipping message", "id", m.ID, "error", err)
			p.skipped.Add(1)
			continue
		}
		if err := p.write(ctx, m, c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) write(ctx context.Context, m Message, c model.Classification) error {
	rec := model.NewRecord(m.ID, p.source, m.Text, p.now().UTC(), c)
	if err := p.output.Write(ctx, rec); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	p.processed.Add(1)
	return nil
}

// Processed returns the number of records written so far.
func (p *Pipeline) Processed() int64 {
	return p.processed.Load()
}

// Skipped returns the number of messages or lines dropped so far.
func (p *Pipeline) Skipped() int64 {
	return p.skipped.Load()
}

// Close reports the skip count and shuts down the output.
func (p *Pipeline) Close() error {
	if n := p.skipped.Load(); n > 0 {
		slog.Warn("pipeline finished with skipped messages", "skipped", n, "processed", p.processed.Load())
	}
	return p.output.Close()
}
