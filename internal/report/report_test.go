package report

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/doc-investigator/internal/export"
	"github.com/sells-group/doc-investigator/internal/model"
	"github.com/sells-group/doc-investigator/internal/store"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evaluations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenerate_MissingSource(t *testing.T) {
	g := NewGenerator("")
	_, err := g.Generate(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestGenerate_HeaderOnly(t *testing.T) {
	path := writeCSV(t, strings.Join(export.Columns, ",")+"\n")

	h, err := NewGenerator("").Generate(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, h.Title)
	assert.Equal(t, 0, h.Profile.Rows)
	assert.Equal(t, len(export.Columns), h.Profile.Columns)
	require.NotNil(t, h.Profile.Evaluation)
	for _, vc := range h.Profile.Evaluation.Distribution {
		assert.Zero(t, vc.Count)
	}

	html, err := h.RenderInline()
	require.NoError(t, err)
	assert.Contains(t, string(html), "Overview")

	out := filepath.Join(t.TempDir(), "r.html")
	require.NoError(t, h.Export(out, "empty"))
	assert.FileExists(t, out)
}

func TestGenerate_EmptyFile(t *testing.T) {
	h, err := NewGenerator("t").Generate(context.Background(), writeCSV(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 0, h.Profile.Columns)
	assert.Nil(t, h.Profile.Evaluation)
}

func TestGenerate_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator("").Generate(ctx, writeCSV(t, "a\n1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

// Three interactions, two rated and one left UNSET, exported then profiled.
func TestGenerate_FromExportedSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.NewSQLite(filepath.Join(dir, "interactions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(ctx))

	id1, err := s.Insert(ctx, "doc1", "q1", "a1", model.AnswerSourceLLM)
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "doc1", "q1", "a1", model.AnswerSourceCache)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "doc2", "q2", "a2", model.AnswerSourceLLM)
	require.NoError(t, err)

	require.NoError(t, s.RecordEvaluation(ctx, id1, model.EvaluationYes, nil))
	reason := "wrong"
	require.NoError(t, s.RecordEvaluation(ctx, id2, model.EvaluationNo, &reason))

	csvPath := filepath.Join(dir, "data", "evaluations.csv")
	n, err := export.New(s).Export(ctx, csvPath)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	h, err := NewGenerator("QA").Generate(ctx, csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, h.Profile.Rows)
	assert.Equal(t, 9, h.Profile.Columns)

	ev := h.Profile.Evaluation
	require.NotNil(t, ev)
	counts := map[string]int{}
	for _, vc := range ev.Distribution {
		counts[vc.Value] = vc.Count
	}
	assert.Equal(t, map[string]int{"YES": 1, "NO": 1, "UNSET": 1}, counts)

	var idStats *ColumnStats
	for i := range h.Profile.ColumnStats {
		if h.Profile.ColumnStats[i].Name == "id" {
			idStats = &h.Profile.ColumnStats[i]
		}
	}
	require.NotNil(t, idStats)
	assert.Equal(t, KindNumeric, idStats.Kind)
	assert.Equal(t, 3, idStats.Distinct)

	out := filepath.Join(dir, "reports", DefaultArtifactPath("", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, h.Export(out, "nightly-qa"))

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(body)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>nightly-qa</title>")
	assert.Contains(t, doc, "<script>")
	assert.Regexp(t, regexp.MustCompile(`artifact [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), doc)
	assert.Regexp(t, regexp.MustCompile(`Exported \d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`), doc)
}

func TestRenderInline_NoScriptsAndEscapes(t *testing.T) {
	path := writeCSV(t, "id,answer,evaluation\n1,<b>bold</b>,YES\n")
	h, err := NewGenerator("").Generate(context.Background(), path)
	require.NoError(t, err)

	html, err := h.RenderInline()
	require.NoError(t, err)
	assert.NotContains(t, string(html), "<script")
	assert.NotContains(t, string(html), "<b>bold</b>")
	assert.Contains(t, string(html), "&lt;b&gt;bold&lt;/b&gt;")
}

func TestExport_Overwrites(t *testing.T) {
	path := writeCSV(t, "id\n1\n")
	h, err := NewGenerator("").Generate(context.Background(), path)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "r.html")
	require.NoError(t, os.WriteFile(out, []byte("stale"), 0o644))
	require.NoError(t, h.Export(out, "first"))
	require.NoError(t, h.Export(out, "second"))

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "stale")
	assert.Contains(t, string(body), "<title>second</title>")
}

func TestExport_UnwritablePath(t *testing.T) {
	path := writeCSV(t, "id\n1\n")
	h, err := NewGenerator("").Generate(context.Background(), path)
	require.NoError(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err = h.Export(filepath.Join(blocker, "r.html"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportIO)
}

func TestExport_DistinctArtifactIDs(t *testing.T) {
	path := writeCSV(t, "id\n1\n")
	h, err := NewGenerator("").Generate(context.Background(), path)
	require.NoError(t, err)

	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.html"), filepath.Join(dir, "b.html")
	require.NoError(t, h.Export(a, "x"))
	require.NoError(t, h.Export(b, "x"))

	re := regexp.MustCompile(`name="artifact-id" content="([^"]+)"`)
	ba, _ := os.ReadFile(a)
	bb, _ := os.ReadFile(b)
	ma, mb := re.FindStringSubmatch(string(ba)), re.FindStringSubmatch(string(bb))
	require.Len(t, ma, 2)
	require.Len(t, mb, 2)
	assert.NotEqual(t, ma[1], mb[1])
}

func TestYAML(t *testing.T) {
	path := writeCSV(t, "id,evaluation\n1,YES\n2,\n")
	h, err := NewGenerator("QA").Generate(context.Background(), path)
	require.NoError(t, err)

	out, err := h.YAML()
	require.NoError(t, err)

	var decoded struct {
		Title   string `yaml:"title"`
		Profile struct {
			Rows       int `yaml:"rows"`
			Evaluation struct {
				Distribution []ValueCount `yaml:"distribution"`
			} `yaml:"evaluation"`
		} `yaml:"profile"`
	}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "QA", decoded.Title)
	assert.Equal(t, 2, decoded.Profile.Rows)
	require.Len(t, decoded.Profile.Evaluation.Distribution, 3)
	assert.Equal(t, "UNSET", decoded.Profile.Evaluation.Distribution[2].Value)
	assert.Equal(t, 1, decoded.Profile.Evaluation.Distribution[2].Count)
}

func TestDefaultArtifactPath(t *testing.T) {
	t.Parallel()
	got := DefaultArtifactPath("reports", time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC))
	assert.Equal(t, filepath.Join("reports", "profiling_report_20250607_080910.html"), got)
}
