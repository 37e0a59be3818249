package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/dslipak/pdf"
	"github.com/rotisserie/eris"
)

// ExtractPDF reads the text layer of a PDF with the pure Go parser.
func ExtractPDF(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "pdf: extract")
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = eris.Wrapf(ErrCorruptDocument, "pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "pdf: open: %v", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "pdf: read text: %v", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", eris.Wrapf(ErrCorruptDocument, "pdf: read text: %v", err)
	}
	return buf.String(), nil
}

// PdfToText extracts text from PDFs using the pdftotext CLI tool.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. If binPath is empty, "pdftotext" is used.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// Extract writes data to a temp file and runs pdftotext -layout on it.
func (p *PdfToText) Extract(ctx context.Context, data []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docinv-*.pdf")
	if err != nil {
		return "", eris.Wrap(err, "pdftotext: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return "", eris.Wrap(err, "pdftotext: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return "", eris.Wrap(err, "pdftotext: close temp file")
	}

	cmd := exec.CommandContext(ctx, p.binPath, "-layout", tmp.Name(), "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", eris.Wrapf(ErrCorruptDocument, "pdftotext: %s", stderrOr(stderr.String(), err))
		}
		return "", eris.Wrapf(err, "pdftotext: run %s", p.binPath)
	}
	return stdout.String(), nil
}

func stderrOr(stderr string, err error) string {
	if stderr != "" {
		return stderr
	}
	return fmt.Sprint(err)
}
