// Package util provides utility functions for file operations.
package util

import (
	"compress/gzip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// OpenFile opens a file for reading. Files named *.gz are decompressed
// transparently so callers see the text they contain, not the gzip stream.
// A *.gz file without a gzip header is returned as is.
// Closing the returned reader releases every underlying resource.
func OpenFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !IsGzipFile(path) {
		return file, nil
	}

	gzReader, err := gzip.NewReader(file)
	switch {
	case err == nil:
	case errors.Is(err, gzip.ErrHeader), err == io.EOF, err == io.ErrUnexpectedEOF:
		if _, serr := file.Seek(0, io.SeekStart); serr != nil {
			file.Close()
			return nil, serr
		}
		return file, nil
	default:
		file.Close()
		return nil, err
	}
	return &gzipFile{Reader: gzReader, file: file}, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	gzErr := g.Reader.Close()
	if err := g.file.Close(); err != nil {
		return err
	}
	return gzErr
}

// IsGzipFile returns true if the file path indicates gzip compression.
func IsGzipFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// StripCompression removes compression extensions (.gz) from a path.
func StripCompression(path string) string {
	if IsGzipFile(path) {
		return path[:len(path)-3]
	}
	return path
}

// BaseFormat extracts the format extension after stripping compression.
// e.g., "page.html.gz" -> ".html", "notes.txt" -> ".txt"
func BaseFormat(path string) string {
	return strings.ToLower(filepath.Ext(StripCompression(path)))
}
