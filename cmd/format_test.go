package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/doc-investigator/internal/cache"
	"github.com/sells-group/doc-investigator/internal/investigator"
	"github.com/sells-group/doc-investigator/internal/model"
)

func TestFormatHistoryList(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []model.InteractionRecord{
		{ID: 2, Question: "What is the\nrelease year?", AnswerSource: model.AnswerSourceCache, Evaluation: model.EvaluationYes, CreatedAt: created},
		{ID: 1, Question: "Who?", AnswerSource: model.AnswerSourceLLM, Evaluation: model.EvaluationUnset, CreatedAt: created},
	}

	var buf bytes.Buffer
	formatHistoryList(&buf, records)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "QUESTION")
	assert.Contains(t, out, "What is the release year?")
	assert.Contains(t, out, "CACHE")
	assert.Contains(t, out, "2025-03-01 12:00:00")
}

func TestFormatCacheStats(t *testing.T) {
	var buf bytes.Buffer
	formatCacheStats(&buf, cache.Stats{Total: 4, LLMAnswers: 1, CacheAnswers: 3, HitRate: 0.75})
	assert.Contains(t, buf.String(), "75.0%")
	assert.Contains(t, buf.String(), "Interactions:")
}

func TestFormatAnswer(t *testing.T) {
	var buf bytes.Buffer
	formatAnswer(&buf, &investigator.Answer{
		RecordID:       9,
		Text:           "1999",
		Source:         model.AnswerSourceLLM,
		Classification: investigator.ClassReal,
		Documents:      "a.txt",
	})
	out := buf.String()
	assert.Contains(t, out, "Record:")
	assert.Contains(t, out, "9")
	assert.Contains(t, out, "LLM")
	assert.Contains(t, out, "\n1999\n")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "a b", preview("a\n\tb", 10))
	assert.Equal(t, "abcdefg...", preview("abcdefghijklmnop", 10))
	assert.Equal(t, "ééééééé...", preview("éééééééééééé", 10))
}

func TestReadDocuments(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("beta"), 0o644))

	docs, err := readDocuments([]string{b, a})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, b, docs[0].Name)
	assert.Equal(t, []byte("alpha"), docs[1].Data)

	_, err = readDocuments([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}
