package core

// Encoding is a canonical charset identifier such as "UTF-8".
// The zero value means no encoding was named.
type Encoding string

const (
	EncodingUnknown Encoding = ""
	EncodingASCII   Encoding = "US-ASCII"
	EncodingUTF8    Encoding = "UTF-8"
	EncodingUTF16BE Encoding = "UTF-16BE"
	EncodingUTF16LE Encoding = "UTF-16LE"
	EncodingUTF32BE Encoding = "UTF-32BE"
	EncodingUTF32LE Encoding = "UTF-32LE"
)

func (e Encoding) String() string {
	if e == EncodingUnknown {
		return "unknown"
	}
	return string(e)
}

// IsZero reports whether e carries no opinion.
func (e Encoding) IsZero() bool {
	return e == EncodingUnknown
}

// IsUnicode reports whether e is one of the UTF encodings.
func (e Encoding) IsUnicode() bool {
	switch e {
	case EncodingUTF8, EncodingUTF16BE, EncodingUTF16LE, EncodingUTF32BE, EncodingUTF32LE:
		return true
	default:
		return false
	}
}
