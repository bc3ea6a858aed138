package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/agrolog/apollo/internal/model"
	"github.com/agrolog/apollo/internal/output"
)

const (
	defaultBufSize    = 64 * 1024 // 64KB
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 10
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSizeMB sets the file size (megabytes) at which rotation triggers.
// Default: 100.
func WithMaxSizeMB(mb int) Option {
	return func(o *Output) { o.lj.MaxSize = mb }
}

// WithMaxBackups sets how many rotated files are kept. Default: 10.
func WithMaxBackups(n int) Option {
	return func(o *Output) { o.lj.MaxBackups = n }
}

// WithCompress gzips rotated files.
func WithCompress() Option {
	return func(o *Output) { o.lj.Compress = true }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// Output writes NDJSON records to a size-rotated file with buffered I/O.
type Output struct {
	mu      sync.Mutex
	w       *bufio.Writer
	lj      *lumberjack.Logger
	detail  output.Detail
	bufSize int
}

// New creates a file output that appends NDJSON to the given path. The file
// is created up front so permission problems surface here, not on the
// first write.
func New(path string, detail output.Detail, opts ...Option) (*Output, error) {
	o := &Output{
		lj: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
		},
		detail:  detail,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file output: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file output: open %s: %w", path, err)
	}
	f.Close()

	o.w = bufio.NewWriterSize(o.lj, o.bufSize)
	return o, nil
}

// Write JSON-encodes the record and appends it as a line to the file.
func (o *Output) Write(_ context.Context, rec model.Record) error {
	data, err := json.Marshal(output.FormatRecord(rec, o.detail))
	if err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}
	data = append(data, '\n')

	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := o.w.Write(data); err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Rotate flushes buffered records and starts a new file, keeping the
// current one as a timestamped backup.
func (o *Output) Rotate() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("file output: flush: %w", err)
	}
	if err := o.lj.Rotate(); err != nil {
		return fmt.Errorf("file output: rotate: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		o.lj.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.lj.Close()
}
