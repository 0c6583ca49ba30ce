// Package extract converts uploaded quote artifacts (PDF, HTML, plaintext)
// into UTF-8 text for the LLM.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// MaxChars caps the text handed downstream. Anything longer is truncated.
const MaxChars = 180000

// Extractor extracts plain text from a file blob with a declared extension.
type Extractor interface {
	Extract(ctx context.Context, data []byte, ext string) (string, error)
}

// Local extracts text without external APIs: pdftotext for PDFs, tag
// stripping for HTML, passthrough for plaintext.
type Local struct {
	pdf      *PdfToText
	maxChars int
}

// NewLocal creates a Local extractor. pdfToTextPath defaults to "pdftotext";
// maxChars <= 0 defaults to MaxChars.
func NewLocal(pdfToTextPath string, maxChars int) *Local {
	if maxChars <= 0 {
		maxChars = MaxChars
	}
	return &Local{
		pdf:      NewPdfToText(pdfToTextPath),
		maxChars: maxChars,
	}
}

// Extract returns the text content of data. ext is matched
// case-insensitively with or without a leading dot.
func (l *Local) Extract(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))

	var text string
	var err error
	switch ext {
	case "pdf":
		text, err = l.pdf.Extract(ctx, data)
	case "html", "htm":
		text = StripHTML(string(data))
	case "txt", "":
		text = string(data)
	default:
		return "", eris.Errorf("extract: unsupported file type %q", ext)
	}
	if err != nil {
		return "", err
	}

	return Truncate(text, l.maxChars), nil
}

// Truncate cuts text at max characters (bytes of the UTF-8 encoding are not
// split; the cut lands on a rune boundary).
func Truncate(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
