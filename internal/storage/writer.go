package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/renameio/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/internal/schema"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

const writeBufferSize = 1 << 20

// Options holds the collaborators shared by writers and readers.
type Options struct {
	// Logger receives debug and info logs. Nil disables logging.
	Logger log.Logger

	// Metrics is updated by every call. Nil uses an unregistered set.
	Metrics *Metrics
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetrics()
	}
	return o
}

// Writer encodes tables into feather files. A Writer holds no per-file state
// and may be used for any number of concurrent writes.
type Writer struct {
	cfg     WriterConfig
	logger  log.Logger
	metrics *Metrics
}

func NewWriter(cfg WriterConfig, opts Options) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ValidationError{Reason: "invalid writer config", Err: err}
	}
	opts = opts.withDefaults()
	return &Writer{
		cfg:     cfg,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// encodedFile is a table encoded and laid out, ready to be streamed.
type encodedFile struct {
	metadata encoding.FileMetadata
	columns  []*ColumnBlock
	footer   []byte
}

// Write writes t to path. The file is written to a temporary file in the
// same directory and renamed over path only once it is complete; on error or
// cancellation path is left untouched.
func (w *Writer) Write(ctx context.Context, t *types.Table, path string) (err error) {
	start := time.Now()
	defer func() { w.observe(start, err) }()

	file, err := w.encode(ctx, t)
	if err != nil {
		return err
	}

	pf, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := pf.Cleanup(); cerr != nil {
			err = multierr.Append(err, &IOError{Op: "cleanup", Path: path, Err: cerr})
		}
	}()

	n, err := w.writeFile(pf, file, path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "replace", Path: path, Err: err}
	}

	w.recordWrite(file, n)
	level.Info(w.logger).Log(
		"msg", "wrote file",
		"path", path,
		"rows", file.metadata.NumRows,
		"columns", len(file.metadata.Columns),
		"bytes", n,
		"duration", time.Since(start),
	)
	return nil
}

// WriteTo streams t to out and returns the number of bytes written. Unlike
// Write it offers no atomicity: on error out may hold a partial file.
func (w *Writer) WriteTo(ctx context.Context, t *types.Table, out io.Writer) (n int64, err error) {
	start := time.Now()
	defer func() { w.observe(start, err) }()

	file, err := w.encode(ctx, t)
	if err != nil {
		return 0, err
	}
	n, err = w.writeFile(out, file, "")
	if err != nil {
		return n, err
	}
	w.recordWrite(file, n)
	level.Debug(w.logger).Log("msg", "wrote stream", "rows", file.metadata.NumRows, "columns", len(file.metadata.Columns), "bytes", n)
	return n, nil
}

// encode validates t, encodes and compresses its columns in parallel and
// assigns every block its file offset.
func (w *Writer) encode(ctx context.Context, t *types.Table) (*encodedFile, error) {
	if t == nil {
		return nil, invalidf("", "table is nil")
	}
	fs, err := schema.FromTable(t)
	if err != nil {
		return nil, validationFromSchema(err)
	}
	if width := w.cfg.DictionaryWidth; width != 0 {
		for _, nc := range t.Columns {
			if levels, _ := nc.Column.Levels(); nc.Column.Type() == types.CategoryType && !fitsCodeWidth(len(levels), width) {
				return nil, invalidf(nc.Name, "%d levels do not fit %d-byte category codes", len(levels), width)
			}
		}
	}

	columns := make([]*ColumnBlock, len(t.Columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.concurrency())
	for i := range t.Columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cb, err := w.encodeColumn(fs.Columns[i], t.Columns[i].Column)
			if err != nil {
				return err
			}
			columns[i] = cb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	file := &encodedFile{
		metadata: encoding.FileMetadata{
			Version:     encoding.Version,
			NumRows:     int64(t.NumRows()),
			Description: t.Description,
			Columns:     make([]encoding.ColumnMeta, 0, len(columns)),
		},
		columns: columns,
	}

	offset := int64(encoding.HeaderSize)
	for _, cb := range columns {
		for i := range cb.Metadata.Blocks {
			ref := &cb.Metadata.Blocks[i]
			ref.Offset = offset
			offset += ref.Length + encoding.Padding(ref.Length)
		}
		file.metadata.Columns = append(file.metadata.Columns, cb.Metadata)
	}

	file.footer, err = encoding.MarshalFooter(&file.metadata)
	if err != nil {
		return nil, err
	}
	if uint64(len(file.footer)) > math.MaxUint32 {
		return nil, invalidf("", "footer of %d bytes exceeds the format limit", len(file.footer))
	}
	return file, nil
}

func (w *Writer) encodeColumn(cs schema.ColumnSchema, col *types.Column) (*ColumnBlock, error) {
	opts := encodeOptions{offsetWidth: w.cfg.OffsetWidth, codeWidth: w.cfg.DictionaryWidth}
	if opts.offsetWidth == 0 {
		opts.offsetWidth = 4
	}

	cb, err := encodeColumn(cs, col, opts)
	if errors.Is(err, ErrEncodingOverflow) && opts.offsetWidth < 8 {
		level.Debug(w.logger).Log("msg", "promoting column to 64-bit offsets", "column", cs.Name, "err", err)
		w.metrics.offsetPromotions.Inc()
		opts.offsetWidth = 8
		cb, err = encodeColumn(cs, col, opts)
	}
	if err != nil {
		return nil, err
	}

	for i, ref := range cb.Metadata.Blocks {
		c, err := codecFor(w.cfg.Compression, cs.Type, ref.Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q %s block: %w", cs.Name, ref.Kind, err)
		}
		stored, codec, err := compressBlock(c, cb.Data[i])
		if err != nil {
			return nil, fmt.Errorf("column %q %s block: %w", cs.Name, ref.Kind, err)
		}
		cb.setStored(i, stored, codec)
	}

	level.Debug(w.logger).Log(
		"msg", "encoded column",
		"column", cs.Name,
		"type", cs.Type,
		"rows", col.Len(),
		"nulls", cb.Metadata.NullCount,
		"blocks", len(cb.Metadata.Blocks),
		"bytes", cb.PaddedSize(),
	)
	return cb, nil
}

// writeFile streams the header, every block with its padding, the footer and
// the trailer.
func (w *Writer) writeFile(out io.Writer, file *encodedFile, path string) (int64, error) {
	bw := bufio.NewWriterSize(out, writeBufferSize)
	cw := &countingWriter{w: bw}

	if err := encoding.WriteHeader(cw, encoding.NewFileHeader()); err != nil {
		return cw.n, &IOError{Op: "write header", Path: path, Err: err}
	}
	for _, cb := range file.columns {
		for _, data := range cb.Data {
			if _, err := cw.Write(data); err != nil {
				return cw.n, &IOError{Op: "write block", Path: path, Err: err}
			}
			if _, err := encoding.WritePadding(cw, int64(len(data))); err != nil {
				return cw.n, &IOError{Op: "write padding", Path: path, Err: err}
			}
		}
	}
	if _, err := cw.Write(file.footer); err != nil {
		return cw.n, &IOError{Op: "write footer", Path: path, Err: err}
	}
	if err := encoding.WriteTrailer(cw, uint32(len(file.footer))); err != nil {
		return cw.n, &IOError{Op: "write trailer", Path: path, Err: err}
	}
	if err := bw.Flush(); err != nil {
		return cw.n, &IOError{Op: "flush", Path: path, Err: err}
	}
	return cw.n, nil
}

func (w *Writer) recordWrite(file *encodedFile, n int64) {
	w.metrics.bytesWritten.Add(float64(n))
	for _, cb := range file.columns {
		w.metrics.columnsEncoded.WithLabelValues(cb.Metadata.Type.String()).Inc()
		for _, ref := range cb.Metadata.Blocks {
			w.metrics.blocksWritten.WithLabelValues(ref.Kind.String(), ref.Compression).Inc()
		}
	}
}

func (w *Writer) observe(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		level.Debug(w.logger).Log("msg", "write failed", "err", err)
	}
	w.metrics.filesWritten.WithLabelValues(status).Inc()
	w.metrics.writeDuration.Observe(time.Since(start).Seconds())
}

// countingWriter counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
