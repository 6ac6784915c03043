package detect

import (
	"context"
	"strings"
	"testing"

	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/ingest/sources"
)

func TestUnicodeDetector(t *testing.T) {
	tests := []struct {
		name string
		data string
		want core.Encoding
	}{
		{"utf8", "\xEF\xBB\xBFabc", core.EncodingUTF8},
		{"utf16be", "\xFE\xFF\x00a", core.EncodingUTF16BE},
		{"utf16le", "\xFF\xFEa\x00", core.EncodingUTF16LE},
		{"utf32be", "\x00\x00\xFE\xFF", core.EncodingUTF32BE},
		{"utf32le before utf16le", "\xFF\xFE\x00\x00", core.EncodingUTF32LE},
		{"short bom prefix", "\xEF\xBB", core.EncodingUnknown},
		{"no bom", "abcd", core.EncodingUnknown},
	}

	d := NewUnicodeDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := d.Detect(context.Background(), memory(tt.data))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if enc != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, enc)
			}
		})
	}
}

func TestASCIIDetector(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		maxBytes int64
		want     core.Encoding
	}{
		{"ascii", "hello, world\n", 0, core.EncodingASCII},
		{"nul and control bytes", "a\x00b\x1fc\x7f", 0, core.EncodingASCII},
		{"utf8", "h\xC3\xA9llo", 0, core.EncodingUnknown},
		{"high byte late", strings.Repeat("a", 100*1024) + "\x80", 0, core.EncodingUnknown},
		{"high byte past bound", "abcd\x80", 4, core.EncodingASCII},
		{"empty", "", 0, core.EncodingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &ASCIIDetector{MaxBytes: tt.maxBytes}
			enc, err := d.Detect(context.Background(), memory(tt.data))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if enc != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, enc)
			}
		})
	}
}

func TestASCIIDetectorHonorsSampleLimit(t *testing.T) {
	src := sources.NewStreamSource(strings.NewReader("abcd\xFF"), 4)
	enc, err := NewASCIIDetector().Detect(context.Background(), src)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if enc != core.EncodingASCII {
		t.Errorf("Expected US-ASCII, got %q", enc)
	}
}

func TestMarkupDetector(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format core.Format
		want   core.Encoding
	}{
		{"xml declaration", `<?xml version="1.0" encoding="ISO-8859-1"?><a/>`, core.FormatUnknown, "ISO-8859-1"},
		{"xml single quotes", `<?xml version='1.0' encoding='utf-8'?><a/>`, core.FormatUnknown, core.EncodingUTF8},
		{"xml without encoding", `<?xml version="1.0"?><a>caf` + "\xC3\xA9" + `</a>`, core.FormatUnknown, core.EncodingUTF8},
		{"xml leading whitespace", "\n  " + `<?xml version="1.0" encoding="UTF-8"?><a/>`, core.FormatUnknown, core.EncodingUTF8},
		{"utf16le signature", "<\x00?\x00x\x00m\x00l\x00", core.FormatUnknown, core.EncodingUTF16LE},
		{"utf16be signature", "\x00<\x00?\x00x\x00m\x00l", core.FormatUnknown, core.EncodingUTF16BE},
		{"meta charset", `<html><head><meta charset="utf-8"><title>x</title></head></html>`, core.FormatUnknown, core.EncodingUTF8},
		{"meta http-equiv", `<html><head><meta http-equiv="Content-Type" content="text/html; charset=UTF-8"></head></html>`, core.FormatUnknown, core.EncodingUTF8},
		{"meta unquoted", `<!DOCTYPE html><html><head><meta charset=utf-8></head>`, core.FormatUnknown, core.EncodingUTF8},
		{"meta in body ignored", `<html><head></head><body><meta charset="utf-8"></body></html>`, core.FormatUnknown, core.EncodingUnknown},
		{"not markup", `charset="utf-8"`, core.FormatUnknown, core.EncodingUnknown},
	}

	d := &MarkupDetector{Window: DefaultMarkupWindow, MinConfidence: DefaultMinConfidence}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := sources.NewMemorySource("m", []byte(tt.data), tt.format)
			enc, err := d.Detect(context.Background(), src)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if enc != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, enc)
			}
		})
	}
}

func TestMarkupDetectorWindow(t *testing.T) {
	doc := "<html><head>" + strings.Repeat("<!-- padding -->", 20) + `<meta charset="utf-8"></head>`
	d := &MarkupDetector{Window: 64}

	enc, err := d.Detect(context.Background(), memory(doc))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !enc.IsZero() {
		t.Errorf("Expected declaration outside the window to be ignored, got %q", enc)
	}
}

func TestCharsetFromContent(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"text/html; charset=ISO-8859-1", "ISO-8859-1"},
		{"text/html;charset=\"utf-8\"", "utf-8"},
		{"text/html; CHARSET = koi8-r ; foo=bar", "koi8-r"},
		{"text/html", ""},
		{"charset", ""},
	}

	for _, tt := range tests {
		if got := charsetFromContent(tt.content); got != tt.want {
			t.Errorf("charsetFromContent(%q): expected %q, got %q", tt.content, tt.want, got)
		}
	}
}

func TestStatisticalDetector(t *testing.T) {
	text := strings.Repeat("日本語のテキストです。これは文字コードの判定テストです。", 20)

	d := NewStatisticalDetector()
	enc, err := d.Detect(context.Background(), memory(text))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if enc != core.EncodingUTF8 {
		t.Errorf("Expected UTF-8, got %q", enc)
	}

	wide := &StatisticalDetector{MaxBytes: 1 << 40}
	enc, err = wide.Detect(context.Background(), memory(text))
	if err != nil || enc != core.EncodingUTF8 {
		t.Errorf("Expected UTF-8 with a window larger than the source, got %q, %v", enc, err)
	}

	strict := &StatisticalDetector{MinConfidence: 101}
	enc, err = strict.Detect(context.Background(), memory(text))
	if err != nil || !enc.IsZero() {
		t.Errorf("Expected no opinion above max confidence, got %q, %v", enc, err)
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		label string
		want  core.Encoding
		ok    bool
	}{
		{"utf-8", core.EncodingUTF8, true},
		{" UTF8 ", core.EncodingUTF8, true},
		{`"us-ascii"`, core.EncodingASCII, true},
		{"ASCII", core.EncodingASCII, true},
		{"UTF-16LE", core.EncodingUTF16LE, true},
		{"iso-8859-1", "ISO-8859-1", true},
		{"GB-18030", "GB18030", true},
		{"IBM420_rtl", "IBM420", true},
		{"IBM424_ltr", "IBM424", true},
		{"no-such-charset", core.EncodingUnknown, false},
		{"", core.EncodingUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, ok := Canonical(tt.label)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	detectors, err := Build(nil, DefaultSettings())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	names := NewChain(detectors).Detectors()
	if strings.Join(names, ",") != strings.Join(DefaultOrder, ",") {
		t.Errorf("Expected default order %v, got %v", DefaultOrder, names)
	}

	detectors, err = Build([]string{"Markup", " ascii "}, DefaultSettings())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if detectors[0].Name() != "markup" || detectors[1].Name() != "ascii" {
		t.Errorf("Expected markup,ascii, got %s,%s", detectors[0].Name(), detectors[1].Name())
	}

	if _, err := Build([]string{"magic"}, DefaultSettings()); err == nil {
		t.Error("Expected error for unknown detector")
	}

	r := NewRegistry()
	r.Register("stub", func(Settings) Detector { return &stubDetector{name: "stub"} })
	if got := r.Names(); len(got) != 1 || got[0] != "stub" {
		t.Errorf("Expected [stub], got %v", got)
	}
}

func TestReadSample(t *testing.T) {
	src := memory("0123456789")

	tests := []struct {
		max  int64
		want string
	}{
		{4, "0123"},
		{20, "0123456789"},
		{-1, "0123456789"},
		{0, ""},
		{1 << 40, "0123456789"},
	}
	for _, tt := range tests {
		got, err := ReadSample(context.Background(), src, tt.max)
		if err != nil {
			t.Fatalf("ReadSample(%d) failed: %v", tt.max, err)
		}
		if string(got) != tt.want {
			t.Errorf("ReadSample(%d): expected %q, got %q", tt.max, tt.want, got)
		}
	}

	stream := sources.NewStreamSource(strings.NewReader("0123456789"), 3)
	got, _ := ReadSample(context.Background(), stream, -1)
	if string(got) != "012" {
		t.Errorf("Expected stream sample bound, got %q", got)
	}
}
