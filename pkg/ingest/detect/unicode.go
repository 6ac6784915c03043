package detect

import (
	"bytes"
	"context"

	"github.com/codepage/codepage/pkg/ingest/core"
)

// UnicodeDetector recognizes a leading byte-order mark.
type UnicodeDetector struct{}

// NewUnicodeDetector creates a BOM detector.
func NewUnicodeDetector() *UnicodeDetector { return &UnicodeDetector{} }

func (d *UnicodeDetector) Name() string { return "unicode" }

// Detect reads the first four bytes and matches them against known BOMs.
func (d *UnicodeDetector) Detect(ctx context.Context, src core.Source) (core.Encoding, error) {
	sample, err := ReadSample(ctx, src, 4)
	if err != nil {
		return core.EncodingUnknown, err
	}
	return bomEncoding(sample), nil
}

var boms = []struct {
	mark []byte
	enc  core.Encoding
}{
	// UTF-32LE shares its first two bytes with UTF-16LE and must win.
	{[]byte{0x00, 0x00, 0xFE, 0xFF}, core.EncodingUTF32BE},
	{[]byte{0xFF, 0xFE, 0x00, 0x00}, core.EncodingUTF32LE},
	{[]byte{0xEF, 0xBB, 0xBF}, core.EncodingUTF8},
	{[]byte{0xFE, 0xFF}, core.EncodingUTF16BE},
	{[]byte{0xFF, 0xFE}, core.EncodingUTF16LE},
}

func bomEncoding(sample []byte) core.Encoding {
	for _, b := range boms {
		if bytes.HasPrefix(sample, b.mark) {
			return b.enc
		}
	}
	return core.EncodingUnknown
}

// Verify interface compliance
var _ Detector = (*UnicodeDetector)(nil)
