package detect

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
)

const asciiChunkSize = 32 * 1024

// ASCIIDetector reports US-ASCII when every inspected byte is below 0x80.
// Addressable sources are scanned in full unless MaxBytes bounds the read.
type ASCIIDetector struct {
	// MaxBytes limits the scan; zero scans the whole source.
	MaxBytes int64
}

// NewASCIIDetector creates an ASCII detector that scans whole sources.
func NewASCIIDetector() *ASCIIDetector { return &ASCIIDetector{} }

func (d *ASCIIDetector) Name() string { return "ascii" }

// Detect streams the source in chunks and stops at the first high byte.
func (d *ASCIIDetector) Detect(ctx context.Context, src core.Source) (core.Encoding, error) {
	bound := int64(-1)
	if d.MaxBytes > 0 {
		bound = d.MaxBytes
	}
	if limit := core.SampleLimit(src); limit >= 0 && (bound < 0 || limit < bound) {
		bound = limit
	}
	if bound == 0 {
		return core.EncodingUnknown, nil
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return core.EncodingUnknown, errors.SourceUnavailable(src.Location(), err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if bound > 0 {
		r = io.LimitReader(rc, bound)
	}

	buf := make([]byte, asciiChunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return core.EncodingUnknown, errors.SourceUnavailable(src.Location(), err)
		}

		n, err := r.Read(buf)
		if !isASCII(buf[:n]) {
			return core.EncodingUnknown, nil
		}
		total += int64(n)

		if err == io.EOF {
			break
		}
		if err != nil {
			return core.EncodingUnknown, errors.SourceUnavailable(src.Location(), err)
		}
	}

	if total == 0 {
		return core.EncodingUnknown, nil
	}
	return core.EncodingASCII, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Verify interface compliance
var _ Detector = (*ASCIIDetector)(nil)
