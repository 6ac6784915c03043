package detect

import (
	"context"

	"github.com/saintfish/chardet"

	"github.com/codepage/codepage/pkg/ingest/core"
)

const (
	// DefaultStatisticalBytes bounds the statistical sample.
	DefaultStatisticalBytes = 64 * 1024

	// DefaultMinConfidence is the chardet score (1-100) below which a guess
	// is treated as no opinion.
	DefaultMinConfidence = 50
)

// StatisticalDetector guesses the encoding from byte-frequency analysis.
type StatisticalDetector struct {
	MaxBytes      int64
	MinConfidence int
}

// NewStatisticalDetector creates a detector with the default sample bound
// and confidence threshold.
func NewStatisticalDetector() *StatisticalDetector {
	return &StatisticalDetector{
		MaxBytes:      DefaultStatisticalBytes,
		MinConfidence: DefaultMinConfidence,
	}
}

func (d *StatisticalDetector) Name() string { return "statistical" }

// Detect returns chardet's best guess when it is confident enough and the
// reported charset has a registry name.
func (d *StatisticalDetector) Detect(ctx context.Context, src core.Source) (core.Encoding, error) {
	max := d.MaxBytes
	if max <= 0 {
		max = DefaultStatisticalBytes
	}
	sample, err := ReadSample(ctx, src, max)
	if err != nil {
		return core.EncodingUnknown, err
	}
	if len(sample) == 0 {
		return core.EncodingUnknown, nil
	}
	return bestGuess(chardet.NewTextDetector(), sample, d.MinConfidence), nil
}

func bestGuess(detector *chardet.Detector, sample []byte, minConfidence int) core.Encoding {
	result, err := detector.DetectBest(sample)
	if err != nil || result == nil {
		return core.EncodingUnknown
	}
	if result.Confidence < minConfidence {
		return core.EncodingUnknown
	}
	enc, ok := Canonical(result.Charset)
	if !ok {
		return core.EncodingUnknown
	}
	return enc
}

// Verify interface compliance
var _ Detector = (*StatisticalDetector)(nil)
