package extract

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/rotisserie/eris"
)

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty,
// "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract writes data to a scoped temp file, runs pdftotext -layout on it,
// and returns stdout. The temp file is removed on every exit path.
func (p *PdfToText) Extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "quote-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "extract: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", eris.Wrap(err, "extract: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "extract: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftotext failed: %s", stderr.String())
	}

	return stdout.String(), nil
}
