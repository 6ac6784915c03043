package detect

import (
	"context"
	"io"

	"github.com/codepage/codepage/pkg/errors"
	"github.com/codepage/codepage/pkg/ingest/core"
)

// ReadSample reads at most max leading bytes of src, further bounded by the
// source's own sample limit. A negative max reads everything the source
// allows. A zero bound returns an empty sample without opening the source.
// Open and read failures are reported as SourceUnavailable.
func ReadSample(ctx context.Context, src core.Source, max int64) ([]byte, error) {
	if limit := core.SampleLimit(src); limit >= 0 && (max < 0 || limit < max) {
		max = limit
	}
	if max == 0 {
		return nil, nil
	}

	reader, err := src.Open(ctx)
	if err != nil {
		return nil, errors.SourceUnavailable(src.Location(), err)
	}
	defer reader.Close()

	var r io.Reader = reader
	if max > 0 {
		// The buffer grows with the bytes that arrive, not with max.
		r = io.LimitReader(reader, max)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.SourceUnavailable(src.Location(), err)
	}
	return data, nil
}
