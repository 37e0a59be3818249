// Package export writes the interaction log as a flat CSV snapshot for
// external analysis tools.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/model"
)

// ErrExportIO means the destination file could not be written.
var ErrExportIO = errors.New("export io error")

// Columns is the fixed column order of the snapshot file.
var Columns = []string{
	"id",
	"document_fingerprint",
	"question",
	"answer",
	"answer_source",
	"evaluation",
	"evaluation_reason",
	"created_at",
	"evaluated_at",
}

// TimeLayout formats timestamps in the snapshot.
const TimeLayout = time.RFC3339Nano

// Snapshotter is the analytics read path of the record store.
type Snapshotter interface {
	ExportAll(ctx context.Context) ([]model.InteractionRecord, error)
}

// Row is one CSV line. Field order matches Columns.
type Row struct {
	ID                  int64  `csv:"id"`
	DocumentFingerprint string `csv:"document_fingerprint"`
	Question            string `csv:"question"`
	Answer              string `csv:"answer"`
	AnswerSource        string `csv:"answer_source"`
	Evaluation          string `csv:"evaluation"`
	EvaluationReason    string `csv:"evaluation_reason"`
	CreatedAt           string `csv:"created_at"`
	EvaluatedAt         string `csv:"evaluated_at"`
}

// Exporter snapshots the record store to a CSV file.
type Exporter struct {
	src Snapshotter
}

// New creates an Exporter reading from src.
func New(src Snapshotter) *Exporter {
	return &Exporter{src: src}
}

// Export overwrites path with the full current state of the store and
// returns the number of data rows written. An empty store yields a
// header-only file. The file is replaced atomically, so readers never see
// a partial snapshot.
func (e *Exporter) Export(ctx context.Context, path string) (int, error) {
	records, err := e.src.ExportAll(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "export: read store")
	}

	if err := WriteAtomic(path, func(f *os.File) error {
		return encode(f, records)
	}); err != nil {
		return 0, err
	}

	zap.L().Info("exported interactions",
		zap.String("path", path),
		zap.Int("rows", len(records)),
	)
	return len(records), nil
}

// ToRow flattens a record into its CSV representation.
func ToRow(r model.InteractionRecord) Row {
	row := Row{
		ID:                  r.ID,
		DocumentFingerprint: r.DocumentFingerprint,
		Question:            r.Question,
		Answer:              r.Answer,
		AnswerSource:        string(r.AnswerSource),
		Evaluation:          string(r.Evaluation),
		EvaluationReason:    r.Reason(),
		CreatedAt:           r.CreatedAt.UTC().Format(TimeLayout),
	}
	if r.EvaluatedAt != nil {
		row.EvaluatedAt = r.EvaluatedAt.UTC().Format(TimeLayout)
	}
	return row
}

func encode(f *os.File, records []model.InteractionRecord) error {
	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)

	if err := enc.EncodeHeader(Row{}); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	enc.AutoHeader = false

	for _, r := range records {
		if err := enc.Encode(ToRow(r)); err != nil {
			return eris.Wrapf(err, "export: write row %d", r.ID)
		}
	}

	w.Flush()
	return eris.Wrap(w.Error(), "export: flush")
}

// WriteAtomic writes into a temp file next to path and renames it into
// place. Any failure is reported as ErrExportIO naming the path.
func WriteAtomic(path string, write func(*os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(ErrExportIO, "export: create directory %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(ErrExportIO, "export: create %s: %v", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if err := write(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(ErrExportIO, "export: write %s: %v", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(ErrExportIO, "export: sync %s: %v", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(ErrExportIO, "export: chmod %s: %v", path, err)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(ErrExportIO, "export: close %s: %v", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(ErrExportIO, "export: replace %s: %v", path, err)
	}
	return nil
}
