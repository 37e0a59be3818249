// Package report builds descriptive profiling reports over an exported
// interaction CSV and renders them as HTML or YAML.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/doc-investigator/internal/export"
)

// ErrSourceNotFound is returned when the CSV snapshot does not exist.
var ErrSourceNotFound = errors.New("report source not found")

// ErrExportIO is returned when the report artifact cannot be written.
var ErrExportIO = export.ErrExportIO

// DefaultTitle is used when no title is configured.
const DefaultTitle = "Document Investigator Evaluation Report"

//go:embed templates/*.tmpl
var templateFS embed.FS

var printer = message.NewPrinter(language.English)

var templates = template.Must(template.New("report").Funcs(template.FuncMap{
	"num": func(n int) string { return printer.Sprintf("%d", n) },
	"pct": func(f float64) string { return printer.Sprintf("%.1f%%", f) },
	"dec": func(f float64) string { return printer.Sprintf("%.2f", f) },
	"ts":  func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}).ParseFS(templateFS, "templates/*.tmpl"))

// Generator profiles CSV snapshots.
type Generator struct {
	title string
	now   func() time.Time
}

// NewGenerator returns a Generator. An empty title falls back to DefaultTitle.
func NewGenerator(title string) *Generator {
	if title == "" {
		title = DefaultTitle
	}
	return &Generator{title: title, now: time.Now}
}

// Generate reads sourcePath and computes its profile. A header-only or
// empty file yields a valid, empty report.
func (g *Generator) Generate(ctx context.Context, sourcePath string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "report: generate")
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(ErrSourceNotFound, "report: %s", sourcePath)
		}
		return nil, eris.Wrapf(err, "report: open %s", sourcePath)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err := readTable(f)
	if err != nil {
		return nil, eris.Wrapf(err, "report: parse %s", sourcePath)
	}

	h := &Handle{
		Title:       g.title,
		Source:      sourcePath,
		GeneratedAt: g.now().UTC(),
		Profile:     buildProfile(header, rows),
	}

	zap.L().Info("report: profile generated",
		zap.String("source", sourcePath),
		zap.Int("rows", h.Profile.Rows),
		zap.Int("columns", h.Profile.Columns),
	)
	return h, nil
}

// Handle is a generated report ready for rendering.
type Handle struct {
	Title       string    `yaml:"title"`
	Source      string    `yaml:"source"`
	GeneratedAt time.Time `yaml:"generated_at"`
	Profile     Profile   `yaml:"profile"`
}

type page struct {
	*Handle
	Label      string
	ArtifactID string
	ExportedAt time.Time
}

// RenderInline returns an HTML fragment suitable for embedding in another
// page. It carries no scripts.
func (h *Handle) RenderInline() (template.HTML, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "body", page{Handle: h}); err != nil {
		return "", eris.Wrap(err, "report: render inline")
	}
	return template.HTML(buf.String()), nil //nolint:gosec // template output is escaped
}

// Export writes a standalone HTML document to path. The label, an export
// timestamp and a fresh artifact id are embedded for provenance.
func (h *Handle) Export(path, label string) error {
	p := page{
		Handle:     h,
		Label:      label,
		ArtifactID: uuid.NewString(),
		ExportedAt: time.Now().UTC(),
	}
	if p.Label == "" {
		p.Label = h.Title
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "document", p); err != nil {
		return eris.Wrap(err, "report: render document")
	}

	err := export.WriteAtomic(path, func(f *os.File) error {
		_, err := f.Write(buf.Bytes())
		return err
	})
	if err != nil {
		return err
	}

	zap.L().Info("report: exported",
		zap.String("path", path),
		zap.String("label", p.Label),
		zap.String("artifact_id", p.ArtifactID),
	)
	return nil
}

// YAML returns the report as a YAML document.
func (h *Handle) YAML() ([]byte, error) {
	out, err := yaml.Marshal(h)
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal yaml")
	}
	return out, nil
}

// DefaultArtifactPath returns <dir>/profiling_report_<YYYYMMDD_HHMMSS>.html.
func DefaultArtifactPath(dir string, t time.Time) string {
	return filepath.Join(dir, "profiling_report_"+t.Format("20060102_150405")+".html")
}
