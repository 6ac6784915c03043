package sources

import (
	"errors"
	"strings"

	"github.com/codepage/codepage/pkg/ingest/core"
)

var errIsDirectory = errors.New("is a directory")

// formatFromExtension guesses the content hint from a lower-case extension.
func formatFromExtension(ext string) core.Format {
	switch ext {
	case ".html", ".htm", ".xhtml", ".shtml", ".jsp", ".asp", ".php":
		return core.FormatHTML
	case ".xml", ".xsd", ".xsl", ".xslt", ".svg", ".rss", ".atom", ".pom", ".wsdl":
		return core.FormatXML
	case ".csv":
		return core.FormatCSV
	case ".tsv":
		return core.FormatTSV
	case ".json", ".jsonl", ".ndjson":
		return core.FormatJSON
	case ".txt", ".text", ".log", ".md", ".java", ".go", ".properties", ".ini":
		return core.FormatText
	case ".gz":
		return core.FormatGzip
	default:
		return core.FormatUnknown
	}
}

func formatFromContentType(ct string) core.Format {
	ct = strings.ToLower(ct)

	switch {
	case strings.Contains(ct, "html"):
		return core.FormatHTML
	case strings.Contains(ct, "xml"):
		return core.FormatXML
	case strings.Contains(ct, "text/csv"):
		return core.FormatCSV
	case strings.Contains(ct, "text/tab-separated"):
		return core.FormatTSV
	case strings.Contains(ct, "json"):
		return core.FormatJSON
	case strings.HasPrefix(ct, "text/"):
		return core.FormatText
	default:
		return core.FormatUnknown
	}
}
