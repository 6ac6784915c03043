package detect

import (
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/codepage/codepage/pkg/ingest/core"
)

var builtinNames = map[string]core.Encoding{
	"us-ascii": core.EncodingASCII,
	"ascii":    core.EncodingASCII,
	"utf-8":    core.EncodingUTF8,
	"utf8":     core.EncodingUTF8,
	"utf-16be": core.EncodingUTF16BE,
	"utf-16le": core.EncodingUTF16LE,
	"utf-32be": core.EncodingUTF32BE,
	"utf-32le": core.EncodingUTF32LE,
}

// chardet reports a few charsets under names that are not IANA labels.
var chardetNames = map[string]core.Encoding{
	"gb-18030":   "GB18030",
	"ibm420_rtl": "IBM420",
	"ibm420_ltr": "IBM420",
	"ibm424_rtl": "IBM424",
	"ibm424_ltr": "IBM424",
}

// Canonical maps an encoding label, as found in a declaration or reported by
// chardet, to its registry name: the preferred MIME name when there is one,
// otherwise the IANA name. Unknown labels report false.
func Canonical(label string) (core.Encoding, bool) {
	key := strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'`))
	if key == "" {
		return core.EncodingUnknown, false
	}

	if enc, ok := builtinNames[key]; ok {
		return enc, true
	}
	if enc, ok := chardetNames[key]; ok {
		return enc, true
	}

	e, err := ianaindex.IANA.Encoding(key)
	if err != nil || e == nil {
		return core.EncodingUnknown, false
	}

	name, err := ianaindex.MIME.Name(e)
	if err != nil || name == "" {
		name, err = ianaindex.IANA.Name(e)
		if err != nil || name == "" {
			return core.EncodingUnknown, false
		}
	}
	if enc, ok := builtinNames[strings.ToLower(name)]; ok {
		return enc, true
	}
	return core.Encoding(name), true
}
