package resolve

import (
	"os"
	"strings"

	"github.com/codepage/codepage/pkg/ingest/core"
	"github.com/codepage/codepage/pkg/ingest/detect"
)

// DefaultFunc supplies the encoding returned when detection gives no answer.
type DefaultFunc func() core.Encoding

// SystemDefault derives the process default from the locale environment:
// the codeset of LC_ALL, LC_CTYPE or LANG, whichever is set first. The C and
// POSIX locales mean US-ASCII; anything unset or unrecognized means UTF-8.
func SystemDefault() core.Encoding {
	return localeDefault(os.Getenv)
}

func localeDefault(getenv func(string) string) core.Encoding {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := getenv(key); v != "" {
			return localeCodeset(v)
		}
	}
	return core.EncodingUTF8
}

// localeCodeset parses language[_territory][.codeset][@modifier].
func localeCodeset(locale string) core.Encoding {
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return core.EncodingASCII
	}

	i := strings.IndexByte(locale, '.')
	if i < 0 {
		return core.EncodingUTF8
	}
	if enc, ok := detect.Canonical(locale[i+1:]); ok {
		return enc
	}
	return core.EncodingUTF8
}

// Fixed returns a DefaultFunc that always answers name, canonicalized when
// the name is a known label.
func Fixed(name string) DefaultFunc {
	enc, ok := detect.Canonical(name)
	if !ok {
		enc = core.Encoding(strings.TrimSpace(name))
	}
	return func() core.Encoding { return enc }
}
