package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/doc-investigator/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it as well.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: parse config: %v", err)
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: create pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: ping: %v", err)
	}
	return &PostgresStore{pool: pool, now: utcNow}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS interactions (
	id                   BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	document_fingerprint TEXT NOT NULL,
	question             TEXT NOT NULL,
	answer               TEXT NOT NULL,
	answer_source        TEXT NOT NULL CHECK (answer_source IN ('LLM', 'CACHE')),
	evaluation           TEXT NOT NULL DEFAULT 'UNSET' CHECK (evaluation IN ('UNSET', 'YES', 'NO')),
	evaluation_reason    TEXT,
	created_at           TIMESTAMPTZ NOT NULL,
	evaluated_at         TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_interactions_lookup ON interactions(document_fingerprint, question, id DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrapf(ErrStorageUnavailable, "postgres: migrate: %v", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, fingerprint, question, answer string, source model.AnswerSource) (int64, error) {
	if err := validateInsert(fingerprint, source); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO interactions (document_fingerprint, question, answer, answer_source, evaluation, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		fingerprint, question, answer, string(source), string(model.EvaluationUnset), s.now(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(ErrStorageUnavailable, "postgres: insert interaction: %v", err)
	}
	return id, nil
}

func (s *PostgresStore) RecordEvaluation(ctx context.Context, id int64, verdict model.Evaluation, reason *string) error {
	if err := validateVerdict(id, verdict); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE interactions
		 SET evaluated_at = CASE
		         WHEN evaluation = $1 AND evaluation_reason IS NOT DISTINCT FROM $2 AND evaluated_at IS NOT NULL THEN evaluated_at
		         ELSE $3
		     END,
		     evaluation = $1,
		     evaluation_reason = $2
		 WHERE id = $4`,
		string(verdict), reason, s.now(), id,
	)
	if err != nil {
		return eris.Wrapf(ErrStorageUnavailable, "postgres: record evaluation %d: %v", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) FindAnswer(ctx context.Context, fingerprint, question string) (*model.InteractionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE document_fingerprint = $1 AND question = $2
		 ORDER BY id DESC LIMIT 1`,
		fingerprint, question,
	)
	rec, err := scanPgInteraction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: find answer: %v", err)
	}
	return rec, nil
}

func (s *PostgresStore) ExportAll(ctx context.Context) ([]model.InteractionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+interactionColumns+` FROM interactions ORDER BY id ASC`,
	)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: export all: %v", err)
	}
	defer rows.Close()
	return collectPgInteractions(rows)
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.InteractionRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+interactionColumns+` FROM interactions WHERE id = $1`,
		id,
	)
	rec, err := scanPgInteraction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: get interaction %d: %v", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]model.InteractionRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE ($1 = '' OR document_fingerprint = $1)
		   AND ($2 = '' OR evaluation = $2)
		 ORDER BY id DESC LIMIT $3`,
		filter.Fingerprint, string(filter.Evaluation), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: list interactions: %v", err)
	}
	defer rows.Close()
	return collectPgInteractions(rows)
}

func (s *PostgresStore) CountBySource(ctx context.Context) (map[model.AnswerSource]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT answer_source, COUNT(*) FROM interactions GROUP BY answer_source`,
	)
	if err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: count by source: %v", err)
	}
	defer rows.Close()

	counts := make(map[model.AnswerSource]int)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source count")
		}
		counts[model.AnswerSource(source)] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count by source iterate")
}

func scanPgInteraction(row pgx.Row) (*model.InteractionRecord, error) {
	var r model.InteractionRecord
	var source, evaluation string

	err := row.Scan(&r.ID, &r.DocumentFingerprint, &r.Question, &r.Answer, &source,
		&evaluation, &r.EvaluationReason, &r.CreatedAt, &r.EvaluatedAt)
	if err != nil {
		return nil, err
	}

	r.AnswerSource = model.AnswerSource(source)
	r.Evaluation = model.Evaluation(evaluation)
	r.CreatedAt = r.CreatedAt.UTC()
	if r.EvaluatedAt != nil {
		t := r.EvaluatedAt.UTC()
		r.EvaluatedAt = &t
	}
	return &r, nil
}

func collectPgInteractions(rows pgx.Rows) ([]model.InteractionRecord, error) {
	var out []model.InteractionRecord
	for rows.Next() {
		r, err := scanPgInteraction(rows)
		if err != nil {
			return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: scan interaction: %v", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(ErrStorageUnavailable, "postgres: iterate interactions: %v", err)
	}
	return out, nil
}
