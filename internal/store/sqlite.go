package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/doc-investigator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// WAL lets ExportAll read a consistent snapshot while an insert is in flight.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: open %s: %v", dsn, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: exec %s on %s: %v", pragma, dsn, err)
		}
	}
	return &SQLiteStore{db: db, now: utcNow}, nil
}

func utcNow() time.Time { return time.Now().UTC() }

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS interactions (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	document_fingerprint TEXT NOT NULL,
	question             TEXT NOT NULL,
	answer               TEXT NOT NULL,
	answer_source        TEXT NOT NULL CHECK (answer_source IN ('LLM', 'CACHE')),
	evaluation           TEXT NOT NULL DEFAULT 'UNSET' CHECK (evaluation IN ('UNSET', 'YES', 'NO')),
	evaluation_reason    TEXT,
	created_at           DATETIME NOT NULL,
	evaluated_at         DATETIME
);

CREATE INDEX IF NOT EXISTS idx_interactions_lookup ON interactions(document_fingerprint, question, id DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrapf(ErrStorageUnavailable, "sqlite: migrate: %v", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Insert(ctx context.Context, fingerprint, question, answer string, source model.AnswerSource) (int64, error) {
	if err := validateInsert(fingerprint, source); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (document_fingerprint, question, answer, answer_source, evaluation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		fingerprint, question, answer, string(source), string(model.EvaluationUnset), s.now(),
	)
	if err != nil {
		return 0, eris.Wrapf(ErrStorageUnavailable, "sqlite: insert interaction: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrapf(ErrStorageUnavailable, "sqlite: last insert id: %v", err)
	}
	return id, nil
}

func (s *SQLiteStore) RecordEvaluation(ctx context.Context, id int64, verdict model.Evaluation, reason *string) error {
	if err := validateVerdict(id, verdict); err != nil {
		return err
	}

	// evaluated_at only moves when the verdict or reason actually changes.
	res, err := s.db.ExecContext(ctx,
		`UPDATE interactions
		 SET evaluated_at = CASE
		         WHEN evaluation = ? AND evaluation_reason IS ? AND evaluated_at IS NOT NULL THEN evaluated_at
		         ELSE ?
		     END,
		     evaluation = ?,
		     evaluation_reason = ?
		 WHERE id = ?`,
		string(verdict), nullableString(reason), s.now(),
		string(verdict), nullableString(reason), id,
	)
	if err != nil {
		return eris.Wrapf(ErrStorageUnavailable, "sqlite: record evaluation %d: %v", id, err)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) FindAnswer(ctx context.Context, fingerprint, question string) (*model.InteractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE document_fingerprint = ? AND question = ?
		 ORDER BY id DESC LIMIT 1`,
		fingerprint, question,
	)
	rec, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: find answer: %v", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+interactionColumns+` FROM interactions ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: export all: %v", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.InteractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE id = ?`,
		id,
	)
	rec, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: get interaction %d: %v", id, err)
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]model.InteractionRecord, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE 1=1`
	var args []any

	if filter.Fingerprint != "" {
		query += ` AND document_fingerprint = ?`
		args = append(args, filter.Fingerprint)
	}
	if filter.Evaluation != "" {
		query += ` AND evaluation = ?`
		args = append(args, string(filter.Evaluation))
	}
	query += ` ORDER BY id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: list interactions: %v", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func (s *SQLiteStore) CountBySource(ctx context.Context) (map[model.AnswerSource]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT answer_source, COUNT(*) FROM interactions GROUP BY answer_source`,
	)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: count by source: %v", err)
	}
	defer rows.Close()

	counts := make(map[model.AnswerSource]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source count")
		}
		counts[model.AnswerSource(source)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count by source iterate")
}

// helpers

const interactionColumns = `id, document_fingerprint, question, answer, answer_source,
	evaluation, evaluation_reason, created_at, evaluated_at`

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanInteraction(row scannable) (*model.InteractionRecord, error) {
	var r model.InteractionRecord
	var source, evaluation string
	var reason sql.NullString
	var evaluatedAt sql.NullTime

	err := row.Scan(&r.ID, &r.DocumentFingerprint, &r.Question, &r.Answer, &source,
		&evaluation, &reason, &r.CreatedAt, &evaluatedAt)
	if err != nil {
		return nil, err
	}

	r.AnswerSource = model.AnswerSource(source)
	r.Evaluation = model.Evaluation(evaluation)
	r.CreatedAt = r.CreatedAt.UTC()
	if reason.Valid {
		r.EvaluationReason = &reason.String
	}
	if evaluatedAt.Valid {
		t := evaluatedAt.Time.UTC()
		r.EvaluatedAt = &t
	}
	return &r, nil
}

func collectInteractions(rows *sql.Rows) ([]model.InteractionRecord, error) {
	var out []model.InteractionRecord
	for rows.Next() {
		r, err := scanInteraction(rows)
		if err != nil {
			return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: scan interaction: %v", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "sqlite: iterate interactions: %v", err)
	}
	return out, nil
}
