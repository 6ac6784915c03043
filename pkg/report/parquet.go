package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// DefaultParquetBatch is the number of rows buffered per record batch.
const DefaultParquetBatch = 1024

// recordSchema is the Arrow schema of a report row. mod_time is Unix millis.
func recordSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "path", Type: arrow.BinaryTypes.String},
		{Name: "file_encoding", Type: arrow.BinaryTypes.String},
		{Name: "stream_encoding", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "detector", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "fallback", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "error", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "size", Type: arrow.PrimitiveTypes.Int64},
		{Name: "mod_time", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
}

// ParquetSink writes records to a Snappy-compressed Parquet file.
type ParquetSink struct {
	path   string
	file   *os.File
	schema *arrow.Schema
	writer *pqarrow.FileWriter

	paths    *array.StringBuilder
	fileEnc  *array.StringBuilder
	stream   *array.StringBuilder
	detector *array.StringBuilder
	fallback *array.BooleanBuilder
	errMsg   *array.StringBuilder
	size     *array.Int64Builder
	modTime  *array.Int64Builder

	mu     sync.Mutex
	rows   int
	batch  int
	total  int64
	closed bool
}

// NewParquetSink creates path and prepares the writer.
func NewParquetSink(path string) (*ParquetSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	schema := recordSchema()
	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	w, err := pqarrow.NewFileWriter(schema, f, writerProps, arrowProps)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	mem := memory.NewGoAllocator()
	return &ParquetSink{
		path:     path,
		file:     f,
		schema:   schema,
		writer:   w,
		paths:    array.NewStringBuilder(mem),
		fileEnc:  array.NewStringBuilder(mem),
		stream:   array.NewStringBuilder(mem),
		detector: array.NewStringBuilder(mem),
		fallback: array.NewBooleanBuilder(mem),
		errMsg:   array.NewStringBuilder(mem),
		size:     array.NewInt64Builder(mem),
		modTime:  array.NewInt64Builder(mem),
		batch:    DefaultParquetBatch,
	}, nil
}

func (p *ParquetSink) Name() string { return "parquet" }

// Path returns the output file.
func (p *ParquetSink) Path() string { return p.path }

func (p *ParquetSink) Write(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return os.ErrClosed
	}

	p.paths.Append(rec.Path)
	p.fileEnc.Append(rec.FileEncoding)
	appendOptional(p.stream, rec.StreamEncoding)
	appendOptional(p.detector, rec.Detector)
	p.fallback.Append(rec.Fallback)
	appendOptional(p.errMsg, rec.Error)
	p.size.Append(rec.Size)
	if rec.ModTime.IsZero() {
		p.modTime.Append(0)
	} else {
		p.modTime.Append(rec.ModTime.UnixMilli())
	}
	p.rows++

	if p.rows >= p.batch {
		return p.flush()
	}
	return nil
}

func appendOptional(b *array.StringBuilder, v string) {
	if v == "" {
		b.AppendNull()
		return
	}
	b.Append(v)
}

// flush writes buffered rows as one record batch. Caller holds mu.
func (p *ParquetSink) flush() error {
	if p.rows == 0 {
		return nil
	}

	cols := []arrow.Array{
		p.paths.NewArray(),
		p.fileEnc.NewArray(),
		p.stream.NewArray(),
		p.detector.NewArray(),
		p.fallback.NewArray(),
		p.errMsg.NewArray(),
		p.size.NewArray(),
		p.modTime.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	batch := array.NewRecord(p.schema, cols, int64(p.rows))
	defer batch.Release()

	if err := p.writer.Write(batch); err != nil {
		return fmt.Errorf("failed to write parquet batch: %w", err)
	}
	p.total += int64(p.rows)
	p.rows = 0
	return nil
}

// Rows returns the number of rows written to the file so far.
func (p *ParquetSink) Rows() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Close flushes the last batch and writes the footer.
func (p *ParquetSink) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.flush()
	if cerr := p.writer.Close(); err == nil {
		err = cerr
	}
	// The parquet writer may already have closed the file.
	if cerr := p.file.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
		err = cerr
	}

	for _, b := range []interface{ Release() }{
		p.paths, p.fileEnc, p.stream, p.detector, p.fallback, p.errMsg, p.size, p.modTime,
	} {
		b.Release()
	}
	return err
}

var _ Sink = (*ParquetSink)(nil)
