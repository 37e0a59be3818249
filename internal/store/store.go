// Package store persists interaction records. The same table serves as the
// audit log, the response cache (FindAnswer) and the analytics source
// (ExportAll).
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/doc-investigator/internal/model"
)

var (
	// ErrStorageUnavailable means the durable medium could not be opened,
	// read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRecordNotFound means no interaction exists with the given id.
	ErrRecordNotFound = errors.New("record not found")
)

// ListFilter specifies criteria for listing interactions.
type ListFilter struct {
	Fingerprint string           `json:"fingerprint,omitempty"`
	Evaluation  model.Evaluation `json:"evaluation,omitempty"`
	Limit       int              `json:"limit,omitempty"`
}

// Store defines the persistence interface for interaction records.
type Store interface {
	// Insert appends a record with evaluation UNSET and returns its id.
	Insert(ctx context.Context, fingerprint, question, answer string, source model.AnswerSource) (int64, error)
	// RecordEvaluation sets the verdict and reason of an existing record.
	// Last write wins; repeating an identical verdict is a no-op.
	RecordEvaluation(ctx context.Context, id int64, verdict model.Evaluation, reason *string) error
	// FindAnswer returns the most recently created record matching the
	// exact (fingerprint, question) pair, or nil when there is none.
	FindAnswer(ctx context.Context, fingerprint, question string) (*model.InteractionRecord, error)
	// ExportAll returns every record ordered by id ascending.
	ExportAll(ctx context.Context) ([]model.InteractionRecord, error)

	Get(ctx context.Context, id int64) (*model.InteractionRecord, error)
	List(ctx context.Context, filter ListFilter) ([]model.InteractionRecord, error)
	CountBySource(ctx context.Context) (map[model.AnswerSource]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func validateInsert(fingerprint string, source model.AnswerSource) error {
	if fingerprint == "" {
		return eris.New("store: empty document fingerprint")
	}
	if !source.Valid() {
		return eris.Errorf("store: invalid answer source %q", source)
	}
	return nil
}

func validateVerdict(id int64, verdict model.Evaluation) error {
	if !verdict.IsVerdict() {
		return eris.Wrapf(model.ErrInvalidVerdict, "store: evaluation %q for interaction %d", verdict, id)
	}
	return nil
}

func notFound(id int64) error {
	return eris.Wrapf(ErrRecordNotFound, "interaction %d", id)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
