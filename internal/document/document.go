// Package document turns uploaded files into the plain-text context sent to
// the language model.
package document

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/doc-investigator/internal/model"
)

var (
	// ErrUnsupportedType is returned for files whose extension has no extractor
	// or is not in the supported list.
	ErrUnsupportedType = errors.New("unsupported document type")
	// ErrCorruptDocument is returned when a file cannot be parsed.
	ErrCorruptDocument = errors.New("corrupt document")
)

// DefaultSupportedTypes lists the extensions handled out of the box.
var DefaultSupportedTypes = []string{".pdf", ".docx", ".txt", ".xlsx"}

// DefaultMaxContextChars caps the combined context in runes.
const DefaultMaxContextChars = 800000

const maxConcurrentExtractions = 4

// Extractor returns the plain text of a single file.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Options configures a Processor.
type Options struct {
	SupportedTypes  []string
	MaxContextChars int
	PDFExtractor    string // "native" (default) or "pdftotext"
	PdfToTextPath   string
}

// Processor validates uploads and builds the combined context.
type Processor struct {
	supported  map[string]bool
	extractors map[string]Extractor
	maxChars   int
}

// NewProcessor returns a Processor with the built-in extractors.
func NewProcessor(opts Options) *Processor {
	types := opts.SupportedTypes
	if len(types) == 0 {
		types = DefaultSupportedTypes
	}
	supported := make(map[string]bool, len(types))
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if !strings.HasPrefix(t, ".") {
			t = "." + t
		}
		supported[t] = true
	}

	maxChars := opts.MaxContextChars
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	var pdfExtractor Extractor = ExtractorFunc(ExtractPDF)
	if opts.PDFExtractor == "pdftotext" {
		pdfExtractor = NewPdfToText(opts.PdfToTextPath)
	}

	return &Processor{
		supported: supported,
		extractors: map[string]Extractor{
			".txt":  ExtractorFunc(ExtractText),
			".pdf":  pdfExtractor,
			".docx": ExtractorFunc(ExtractDOCX),
			".xlsx": ExtractorFunc(ExtractXLSX),
		},
		maxChars: maxChars,
	}
}

// Register installs or replaces the extractor for ext and marks it supported.
func (p *Processor) Register(ext string, e Extractor) {
	ext = strings.ToLower(ext)
	p.extractors[ext] = e
	p.supported[ext] = true
}

// Validate checks that every document has a supported extension.
func (p *Processor) Validate(docs []model.Document) error {
	for _, d := range docs {
		ext := d.Ext()
		if !p.supported[ext] || p.extractors[ext] == nil {
			zap.L().Warn("document: unsupported file type",
				zap.String("file", d.BaseName()),
				zap.String("ext", ext),
			)
			return eris.Wrapf(ErrUnsupportedType, "file %q has extension %q", d.BaseName(), ext)
		}
	}
	return nil
}

// Extract runs the extractor registered for ext against data.
func (p *Processor) Extract(ctx context.Context, data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	e, ok := p.extractors[ext]
	if !ok || !p.supported[ext] {
		return "", eris.Wrapf(ErrUnsupportedType, "extension %q", ext)
	}
	return e.Extract(ctx, data)
}

// Process validates docs, extracts them concurrently and returns the combined
// context. Blocks keep upload order.
func (p *Processor) Process(ctx context.Context, docs []model.Document) (string, error) {
	if err := p.Validate(docs); err != nil {
		return "", err
	}

	texts := make([]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtractions)

	for i, d := range docs {
		g.Go(func() error {
			text, err := p.Extract(gctx, d.Data, d.Ext())
			if err != nil {
				return eris.Wrapf(err, "extract %s", d.BaseName())
			}
			texts[i] = text
			zap.L().Debug("document: extracted",
				zap.String("file", d.BaseName()),
				zap.Int("chars", utf8.RuneCountInString(text)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	blocks := make([]string, len(docs))
	for i, d := range docs {
		blocks[i] = "--- CONTENT FROM " + d.BaseName() + " ---\n" + texts[i]
	}
	combined, truncated := Truncate(strings.Join(blocks, "\n\n"), p.maxChars)
	if truncated {
		zap.L().Warn("document: context truncated", zap.Int("max_chars", p.maxChars))
	}
	return combined, nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
