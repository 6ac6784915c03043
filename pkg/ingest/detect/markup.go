package detect

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/codepage/codepage/pkg/ingest/core"
)

// DefaultMarkupWindow is the number of leading bytes searched for a
// declaration.
const DefaultMarkupWindow = 8 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOM-less "<?" in the wider Unicode forms (XML 1.0 Appendix F).
var xmlSignatures = []struct {
	sig []byte
	enc core.Encoding
}{
	{[]byte{0x00, 0x00, 0x00, 0x3C}, core.EncodingUTF32BE},
	{[]byte{0x3C, 0x00, 0x00, 0x00}, core.EncodingUTF32LE},
	{[]byte{0x00, 0x3C, 0x00, 0x3F}, core.EncodingUTF16BE},
	{[]byte{0x3C, 0x00, 0x3F, 0x00}, core.EncodingUTF16LE},
}

var xmlEncodingAttr = regexp.MustCompile(`encoding\s*=\s*["']([A-Za-z][A-Za-z0-9._:-]*)["']`)

// MarkupDetector reads the encoding declared by XML or HTML content. When the
// document declares nothing it can fall back to statistical sniffing of the
// text outside the tags.
type MarkupDetector struct {
	Window        int64
	Sniff         bool
	MinConfidence int
}

// NewMarkupDetector creates a markup detector with sniffing enabled.
func NewMarkupDetector() *MarkupDetector {
	return &MarkupDetector{
		Window:        DefaultMarkupWindow,
		Sniff:         true,
		MinConfidence: DefaultMinConfidence,
	}
}

func (d *MarkupDetector) Name() string { return "markup" }

// Detect returns the declared encoding of markup content. Sources that do not
// look like markup get no opinion.
func (d *MarkupDetector) Detect(ctx context.Context, src core.Source) (core.Encoding, error) {
	window := d.Window
	if window <= 0 {
		window = DefaultMarkupWindow
	}
	sample, err := ReadSample(ctx, src, window)
	if err != nil {
		return core.EncodingUnknown, err
	}
	if len(sample) == 0 {
		return core.EncodingUnknown, nil
	}

	for _, s := range xmlSignatures {
		if bytes.HasPrefix(sample, s.sig) {
			return s.enc, nil
		}
	}

	head := bytes.TrimLeft(bytes.TrimPrefix(sample, utf8BOM), " \t\r\n")
	if len(head) == 0 || (head[0] != '<' && !src.Format().IsMarkup()) {
		return core.EncodingUnknown, nil
	}

	if bytes.HasPrefix(head, []byte("<?xml")) {
		if enc, ok := xmlDeclared(head); ok {
			return enc, nil
		}
	}
	if enc := htmlDeclared(head); !enc.IsZero() {
		return enc, nil
	}

	if d.Sniff {
		return bestGuess(chardet.NewHtmlDetector(), sample, d.MinConfidence), nil
	}
	return core.EncodingUnknown, nil
}

// xmlDeclared reads the encoding pseudo-attribute of an XML declaration. A
// declaration without one means UTF-8, which is only trusted when the head
// actually decodes as UTF-8.
func xmlDeclared(head []byte) (core.Encoding, bool) {
	dec := xml.NewDecoder(bytes.NewReader(head))
	// The declared label is read from the raw instruction below; no decoding
	// happens here.
	dec.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }

	tok, err := dec.RawToken()
	if err != nil {
		return core.EncodingUnknown, false
	}
	pi, ok := tok.(xml.ProcInst)
	if !ok || pi.Target != "xml" {
		return core.EncodingUnknown, false
	}

	m := xmlEncodingAttr.FindSubmatch(pi.Inst)
	if m == nil {
		if validUTF8Prefix(head) {
			return core.EncodingUTF8, true
		}
		return core.EncodingUnknown, false
	}
	return Canonical(string(m[1]))
}

// htmlDeclared scans the document head for <meta charset> or an http-equiv
// Content-Type, stopping at <body> or </head>.
func htmlDeclared(head []byte) core.Encoding {
	z := html.NewTokenizer(bytes.NewReader(head))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return core.EncodingUnknown

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				return core.EncodingUnknown
			case "meta":
				if !hasAttr {
					continue
				}
				if label := metaCharset(z); label != "" {
					if enc := lookupHTMLLabel(label); !enc.IsZero() {
						return enc
					}
				}
			}

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return core.EncodingUnknown
			}
		}
	}
}

func metaCharset(z *html.Tokenizer) string {
	var label, httpEquiv, content string
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "charset":
			label = string(val)
		case "http-equiv":
			httpEquiv = string(val)
		case "content":
			content = string(val)
		}
		if !more {
			break
		}
	}

	if label != "" {
		return strings.TrimSpace(label)
	}
	if strings.EqualFold(httpEquiv, "content-type") {
		return charsetFromContent(content)
	}
	return ""
}

// charsetFromContent extracts the charset parameter of a Content-Type value.
func charsetFromContent(content string) string {
	lower := strings.ToLower(content)
	i := strings.Index(lower, "charset")
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(content[i+len("charset"):], " \t")
	if !strings.HasPrefix(rest, "=") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if rest == "" {
		return ""
	}
	if q := rest[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(rest[1:], q); end >= 0 {
			return rest[1 : end+1]
		}
		return ""
	}
	if end := strings.IndexAny(rest, "; \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// lookupHTMLLabel resolves a label with the WHATWG table first, so aliases
// such as "latin1" land where browsers put them.
func lookupHTMLLabel(label string) core.Encoding {
	if _, name := charset.Lookup(label); name != "" {
		if enc, ok := Canonical(name); ok {
			return enc
		}
	}
	enc, _ := Canonical(label)
	return enc
}

// validUTF8Prefix reports whether b is valid UTF-8, ignoring a rune cut off
// by the end of the window.
func validUTF8Prefix(b []byte) bool {
	if utf8.Valid(b) {
		return true
	}
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if utf8.RuneStart(b[start]) {
			if !utf8.FullRune(b[start:]) {
				return utf8.Valid(b[:start])
			}
			break
		}
	}
	return false
}

// Verify interface compliance
var _ Detector = (*MarkupDetector)(nil)
