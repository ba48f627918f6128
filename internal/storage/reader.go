package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/ivan-cunha/feather-format/internal/compression"
	"github.com/ivan-cunha/feather-format/internal/encoding"
	"github.com/ivan-cunha/feather-format/internal/schema"
	"github.com/ivan-cunha/feather-format/pkg/types"
)

// FileInfo summarizes an open file without decoding any column.
type FileInfo struct {
	Version     uint16
	NumRows     int64
	Description string
	Size        int64
	Schema      *schema.FileSchema
	Columns     []encoding.ColumnMeta
}

// Reader gives random access to the columns of a feather file. Opening a
// file reads only its header, trailer and footer; column blocks are read on
// demand. A Reader is safe for concurrent use.
type Reader struct {
	r      io.ReaderAt
	size   int64
	path   string
	closer io.Closer

	header   encoding.FileHeader
	metadata *encoding.FileMetadata
	schema   *schema.FileSchema

	cfg     ReaderConfig
	logger  log.Logger
	metrics *Metrics
}

// NewReader opens the file of the given size held by r.
func NewReader(r io.ReaderAt, size int64, cfg ReaderConfig, opts Options) (*Reader, error) {
	return newReader(r, size, "", cfg, opts)
}

// OpenFile opens the file at path. The returned Reader must be closed.
func OpenFile(path string, cfg ReaderConfig, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &IOError{Op: "stat", Path: path, Err: err}
	}
	rd, err := newReader(f, st.Size(), path, cfg, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	rd.closer = f
	return rd, nil
}

func newReader(r io.ReaderAt, size int64, path string, cfg ReaderConfig, opts Options) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &ValidationError{Reason: "invalid reader config", Err: err}
	}
	opts = opts.withDefaults()
	rd := &Reader{
		r:       r,
		size:    size,
		path:    path,
		cfg:     cfg,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if err := rd.init(); err != nil {
		if errors.Is(err, ErrCorruptFile) {
			rd.metrics.corruptFiles.Inc()
		}
		return nil, err
	}
	level.Debug(rd.logger).Log("msg", "opened file", "path", path, "size", size, "rows", rd.metadata.NumRows, "columns", len(rd.metadata.Columns))
	return rd, nil
}

// init reads and validates the header, trailer and footer.
func (rd *Reader) init() error {
	if rd.size < encoding.HeaderSize+encoding.TrailerSize {
		return corruptf("", "file of %d bytes is too small", rd.size)
	}

	buf, err := rd.readAt("read header", 0, encoding.HeaderSize)
	if err != nil {
		return err
	}
	rd.header, err = encoding.ReadHeader(bytes.NewReader(buf))
	if err != nil {
		return &CorruptFileError{Reason: "bad header", Err: err}
	}

	dataEnd := rd.size - encoding.TrailerSize
	buf, err = rd.readAt("read trailer", dataEnd, encoding.TrailerSize)
	if err != nil {
		return err
	}
	footerLen, err := encoding.ParseTrailer(buf)
	if err != nil {
		return &CorruptFileError{Reason: "bad trailer", Err: err}
	}
	footerStart := dataEnd - int64(footerLen)
	if footerStart < encoding.HeaderSize {
		return corruptf("", "footer length %d exceeds file size %d", footerLen, rd.size)
	}

	buf, err = rd.readAt("read footer", footerStart, int64(footerLen))
	if err != nil {
		return err
	}
	md, err := encoding.UnmarshalFooter(buf)
	if err != nil {
		return &CorruptFileError{Reason: "bad footer", Err: err}
	}
	if md.Version != rd.header.Version {
		return corruptf("", "footer version %d does not match header version %d", md.Version, rd.header.Version)
	}
	if md.NumRows < 0 {
		return corruptf("", "negative row count %d", md.NumRows)
	}
	if err := encoding.ValidateDirectory(md, encoding.HeaderSize, footerStart); err != nil {
		return &CorruptFileError{Err: err}
	}

	fs := md.Schema()
	if err := fs.Validate(); err != nil {
		var ce *schema.ColumnError
		if errors.As(err, &ce) {
			return &CorruptFileError{Column: ce.Column, Err: ce.Err}
		}
		return &CorruptFileError{Err: err}
	}
	if len(md.Columns) == 0 && md.NumRows != 0 {
		return corruptf("", "%d rows recorded without columns", md.NumRows)
	}
	for i := range md.Columns {
		if err := checkBlockSizes(&md.Columns[i], md.NumRows); err != nil {
			return err
		}
	}

	rd.metadata = md
	rd.schema = fs
	return nil
}

// readAt reads exactly n bytes at off. Short reads mean the file is
// truncated.
func (rd *Reader) readAt(op string, off, n int64) ([]byte, error) {
	if off < 0 || n < 0 || off+n > rd.size {
		return nil, corruptf("", "range [%d, %d) outside file of %d bytes", off, off+n, rd.size)
	}
	buf := make([]byte, n)
	read, err := rd.r.ReadAt(buf, off)
	if int64(read) == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, corruptf("", "%s: file truncated at offset %d", op, off+int64(read))
	}
	return nil, &IOError{Op: op, Path: rd.path, Err: err}
}

// Close releases the file opened by OpenFile. It is a no-op for readers
// created with NewReader.
func (rd *Reader) Close() error {
	if rd.closer == nil {
		return nil
	}
	if err := rd.closer.Close(); err != nil {
		return &IOError{Op: "close", Path: rd.path, Err: err}
	}
	return nil
}

func (rd *Reader) NumRows() int64 { return rd.metadata.NumRows }

func (rd *Reader) NumColumns() int { return len(rd.metadata.Columns) }

func (rd *Reader) Version() uint16 { return rd.header.Version }

func (rd *Reader) Description() string { return rd.metadata.Description }

func (rd *Reader) Schema() *schema.FileSchema { return rd.schema }

// Info returns the file summary, including the block directory.
func (rd *Reader) Info() FileInfo {
	return FileInfo{
		Version:     rd.header.Version,
		NumRows:     rd.metadata.NumRows,
		Description: rd.metadata.Description,
		Size:        rd.size,
		Schema:      rd.schema,
		Columns:     rd.metadata.Columns,
	}
}

// Column reads and decodes the column called name.
func (rd *Reader) Column(ctx context.Context, name string) (*types.Column, error) {
	_, idx, err := rd.schema.GetColumn(name)
	if err != nil {
		return nil, err
	}
	return rd.ColumnAt(ctx, idx)
}

// ColumnAt reads and decodes column i.
func (rd *Reader) ColumnAt(ctx context.Context, i int) (*types.Column, error) {
	if i < 0 || i >= len(rd.metadata.Columns) {
		return nil, fmt.Errorf("%w: index %d of %d columns", ErrColumnNotFound, i, len(rd.metadata.Columns))
	}
	col, err := rd.readColumn(ctx, i)
	if err != nil && errors.Is(err, ErrCorruptFile) {
		rd.metrics.corruptFiles.Inc()
	}
	return col, err
}

// ReadOptions selects the part of a file ReadTable materializes.
type ReadOptions struct {
	// Columns selects columns by name. It takes precedence over Indices.
	Columns []string

	// Indices selects columns by position.
	Indices []int

	// Rows restricts the rows to a half-open range. Nil reads every row.
	Rows *RowRange
}

// RowRange is the half-open row range [Start, End).
type RowRange struct {
	Start, End int64
}

// ReadTable materializes the selected columns, in the order requested, or
// every column when none is selected. Only the blocks of selected columns are
// read. On error no partial table is returned.
func (rd *Reader) ReadTable(ctx context.Context, opts ReadOptions) (_ *types.Table, err error) {
	start := time.Now()
	defer func() {
		rd.metrics.readDuration.Observe(time.Since(start).Seconds())
		if err != nil && errors.Is(err, ErrCorruptFile) {
			rd.metrics.corruptFiles.Inc()
		}
	}()

	indices, err := rd.resolve(opts)
	if err != nil {
		return nil, err
	}
	if r := opts.Rows; r != nil {
		if r.Start < 0 || r.End < r.Start || r.End > rd.metadata.NumRows {
			return nil, invalidf("", "row range [%d, %d) outside [0, %d)", r.Start, r.End, rd.metadata.NumRows)
		}
	}

	columns := make([]*types.Column, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rd.cfg.concurrency())
	for i, idx := range indices {
		g.Go(func() error {
			col, err := rd.readColumn(gctx, idx)
			if err != nil {
				return err
			}
			if r := opts.Rows; r != nil {
				col = col.Slice(int(r.Start), int(r.End))
			}
			columns[i] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := types.NewTable()
	t.Description = rd.metadata.Description
	for i, idx := range indices {
		t.Add(rd.metadata.Columns[idx].Name, columns[i])
	}
	level.Debug(rd.logger).Log("msg", "read table", "path", rd.path, "columns", len(indices), "rows", t.NumRows(), "duration", time.Since(start))
	return t, nil
}

func (rd *Reader) resolve(opts ReadOptions) ([]int, error) {
	switch {
	case len(opts.Columns) > 0:
		indices := make([]int, len(opts.Columns))
		for i, name := range opts.Columns {
			_, idx, err := rd.schema.GetColumn(name)
			if err != nil {
				return nil, err
			}
			indices[i] = idx
		}
		return indices, nil
	case len(opts.Indices) > 0:
		for _, idx := range opts.Indices {
			if idx < 0 || idx >= len(rd.metadata.Columns) {
				return nil, fmt.Errorf("%w: index %d of %d columns", ErrColumnNotFound, idx, len(rd.metadata.Columns))
			}
		}
		return append([]int(nil), opts.Indices...), nil
	default:
		indices := make([]int, len(rd.metadata.Columns))
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}
}

// readColumn reads the blocks of column i, verifies and decompresses them
// and decodes the column.
func (rd *Reader) readColumn(ctx context.Context, i int) (*types.Column, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta := &rd.metadata.Columns[i]

	blocks := make(map[encoding.BlockKind][]byte, len(meta.Blocks))
	for _, ref := range meta.Blocks {
		raw, err := rd.readBlock(meta.Name, ref)
		if err != nil {
			return nil, err
		}
		blocks[ref.Kind] = raw
	}

	col, err := decodeColumn(meta, rd.metadata.NumRows, blocks)
	if err != nil {
		return nil, err
	}
	rd.metrics.columnsDecoded.WithLabelValues(meta.Type.String()).Inc()
	return col, nil
}

func (rd *Reader) readBlock(column string, ref encoding.BlockRef) ([]byte, error) {
	stored, err := rd.readAt("read block", ref.Offset, ref.Length)
	if err != nil {
		var cfe *CorruptFileError
		if errors.As(err, &cfe) {
			cfe.Column = column
		}
		return nil, err
	}
	rd.metrics.bytesRead.Add(float64(len(stored)))

	if rd.cfg.VerifyChecksums {
		if sum := xxhash.Sum64(stored); sum != ref.Checksum {
			return nil, corruptf(column, "%s block checksum %016x does not match %016x", ref.Kind, sum, ref.Checksum)
		}
	}

	c, err := compression.GetCompressor(ref.Compression)
	if err != nil {
		return nil, corruptf(column, "%s block uses unknown compression %q", ref.Kind, ref.Compression)
	}
	raw, err := c.Decompress(stored, int(ref.RawLength))
	if err != nil {
		return nil, &CorruptFileError{Column: column, Reason: fmt.Sprintf("decompressing %s block", ref.Kind), Err: err}
	}
	if int64(len(raw)) != ref.RawLength {
		return nil, corruptf(column, "%s block decompressed to %d bytes, expected %d", ref.Kind, len(raw), ref.RawLength)
	}
	return raw, nil
}
