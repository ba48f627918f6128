// Package feather reads and writes feather files: columnar binary tables
// with a lossless write/read round trip of typed columns, nulls, categorical
// columns and non-finite floats.
package feather

import (
	"context"
	"io"

	"github.com/go-kit/log"

	"github.com/ivan-cunha/feather-format/internal/schema"
	"github.com/ivan-cunha/feather-format/internal/storage"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

type (
	Table        = types.Table
	Column       = types.Column
	ColumnSchema = schema.ColumnSchema
	FileSchema   = schema.FileSchema

	Config       = storage.Config
	WriterConfig = storage.WriterConfig
	ReaderConfig = storage.ReaderConfig
	Metrics      = storage.Metrics
	RowRange     = storage.RowRange
	FileInfo     = storage.FileInfo

	// File is an open feather file. Columns are read on demand.
	File = storage.Reader

	ValidationError  = storage.ValidationError
	CorruptFileError = storage.CorruptFileError
	IOError          = storage.IOError
)

var (
	ErrValidation     = storage.ErrValidation
	ErrCorruptFile    = storage.ErrCorruptFile
	ErrColumnNotFound = storage.ErrColumnNotFound
)

// DefaultConfig returns the default writer and reader configuration.
func DefaultConfig() Config { return storage.DefaultConfig() }

func NewMetrics() *Metrics { return storage.NewMetrics() }

type settings struct {
	cfg  Config
	opts storage.Options
	read storage.ReadOptions
}

// An Option customizes a single call.
type Option func(*settings)

func WithConfig(cfg Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithCompression sets the block compression codec of writes.
func WithCompression(name string) Option {
	return func(s *settings) { s.cfg.Writer.Compression = name }
}

func WithLogger(logger log.Logger) Option {
	return func(s *settings) { s.opts.Logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(s *settings) { s.opts.Metrics = m }
}

// WithColumns restricts Read to the named columns, in the given order.
func WithColumns(names ...string) Option {
	return func(s *settings) { s.read.Columns = names }
}

// WithColumnIndices restricts Read to the columns at the given positions.
func WithColumnIndices(indices ...int) Option {
	return func(s *settings) { s.read.Indices = indices }
}

// WithRows restricts Read to rows [start, end).
func WithRows(start, end int64) Option {
	return func(s *settings) { s.read.Rows = &RowRange{Start: start, End: end} }
}

func apply(opts []Option) settings {
	s := settings{cfg: storage.DefaultConfig()}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// Write writes t to path atomically.
func Write(ctx context.Context, path string, t *Table, opts ...Option) error {
	s := apply(opts)
	w, err := storage.NewWriter(s.cfg.Writer, s.opts)
	if err != nil {
		return err
	}
	return w.Write(ctx, t, path)
}

// WriteTo streams t to out.
func WriteTo(ctx context.Context, out io.Writer, t *Table, opts ...Option) (int64, error) {
	s := apply(opts)
	w, err := storage.NewWriter(s.cfg.Writer, s.opts)
	if err != nil {
		return 0, err
	}
	return w.WriteTo(ctx, t, out)
}

// Read materializes the file at path, or the part of it selected by
// WithColumns, WithColumnIndices and WithRows.
func Read(ctx context.Context, path string, opts ...Option) (_ *Table, err error) {
	s := apply(opts)
	f, err := storage.OpenFile(path, s.cfg.Reader, s.opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return f.ReadTable(ctx, s.read)
}

// Open opens the file at path, reading only its metadata. The File must be
// closed.
func Open(path string, opts ...Option) (*File, error) {
	s := apply(opts)
	return storage.OpenFile(path, s.cfg.Reader, s.opts)
}

// OpenReader opens the file of the given size held by r.
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	s := apply(opts)
	return storage.NewReader(r, size, s.cfg.Reader, s.opts)
}
