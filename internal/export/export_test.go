package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/doc-investigator/internal/model"
	"github.com/sells-group/doc-investigator/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestExport_EmptyStoreWritesHeaderOnly(t *testing.T) {
	st := newTestStore(t)
	out := filepath.Join(t.TempDir(), "data", "evaluations.csv")

	n, err := New(st).Export(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows := readCSV(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, Columns, rows[0])
}

func TestExport_RowsInIDOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.Insert(ctx, "doc1", "What is the release year?", "1999", model.AnswerSourceLLM)
	require.NoError(t, err)
	id2, err := st.Insert(ctx, "doc1", "What is the release year?", "1999", model.AnswerSourceCache)
	require.NoError(t, err)
	_, err = st.Insert(ctx, "doc2", "Summarise, please", "Line one\nline \"two\"", model.AnswerSourceLLM)
	require.NoError(t, err)
	reason := "matches page 3"
	require.NoError(t, st.RecordEvaluation(ctx, id1, model.EvaluationYes, &reason))
	require.NoError(t, st.RecordEvaluation(ctx, id2, model.EvaluationNo, nil))

	out := filepath.Join(t.TempDir(), "evaluations.csv")
	n, err := New(st).Export(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows := readCSV(t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])

	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "LLM", rows[1][4])
	assert.Equal(t, "YES", rows[1][5])
	assert.Equal(t, "matches page 3", rows[1][6])
	assert.NotEmpty(t, rows[1][8])

	assert.Equal(t, "CACHE", rows[2][4])
	assert.Equal(t, "NO", rows[2][5])
	assert.Equal(t, "", rows[2][6])

	assert.Equal(t, "Line one\nline \"two\"", rows[3][3])
	assert.Equal(t, "UNSET", rows[3][5])
	assert.Equal(t, "", rows[3][8])

	_, err = time.Parse(TimeLayout, rows[3][7])
	assert.NoError(t, err)
}

func TestExport_IdempotentAndOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "evaluations.csv")

	require.NoError(t, os.WriteFile(out, []byte("stale,content\nthat,should,vanish\n"), 0o644))

	_, err := st.Insert(ctx, "doc1", "q", "a", model.AnswerSourceLLM)
	require.NoError(t, err)

	exp := New(st)
	_, err = exp.Export(ctx, out)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = exp.Export(ctx, out)
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.False(t, strings.Contains(string(second), "stale"))

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestExport_RowCountMatchesInserts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		_, err := st.Insert(ctx, "doc", "q", "a", model.AnswerSourceLLM)
		require.NoError(t, err)
	}

	n, err := New(st).Export(ctx, filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestExport_UnwritableDestination(t *testing.T) {
	st := newTestStore(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	dest := filepath.Join(blocker, "evaluations.csv")
	_, err := New(st).Export(context.Background(), dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportIO)
	assert.Contains(t, err.Error(), blocker)
}

type brokenSource struct{}

func (brokenSource) ExportAll(context.Context) ([]model.InteractionRecord, error) {
	return nil, store.ErrStorageUnavailable
}

func TestExport_StoreFailureWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "evaluations.csv")

	_, err := New(brokenSource{}).Export(context.Background(), out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrStorageUnavailable))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestToRow(t *testing.T) {
	created := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	evaluated := created.Add(90 * time.Second)
	reason := "ok"

	row := ToRow(model.InteractionRecord{
		ID:                  5,
		DocumentFingerprint: "sha256:ff",
		Question:            "q",
		Answer:              "a",
		AnswerSource:        model.AnswerSourceLLM,
		Evaluation:          model.EvaluationYes,
		EvaluationReason:    &reason,
		CreatedAt:           created,
		EvaluatedAt:         &evaluated,
	})

	assert.Equal(t, Row{
		ID:                  5,
		DocumentFingerprint: "sha256:ff",
		Question:            "q",
		Answer:              "a",
		AnswerSource:        "LLM",
		Evaluation:          "YES",
		EvaluationReason:    "ok",
		CreatedAt:           "2025-05-04T10:30:00Z",
		EvaluatedAt:         "2025-05-04T10:31:30Z",
	}, row)
}
