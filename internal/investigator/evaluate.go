package investigator

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/model"
)

// EvaluationRecorder persists verdicts.
type EvaluationRecorder interface {
	RecordEvaluation(ctx context.Context, id int64, verdict model.Evaluation, reason *string) error
}

// Evaluator records human verdicts. It needs only the store, so commands
// that never call the model can use it directly.
type Evaluator struct {
	store    EvaluationRecorder
	noReason string
}

// NewEvaluator returns an Evaluator. An empty noReason falls back to
// DefaultNoReasonGiven.
func NewEvaluator(st EvaluationRecorder, noReason string) *Evaluator {
	if strings.TrimSpace(noReason) == "" {
		noReason = DefaultNoReasonGiven
	}
	return &Evaluator{store: st, noReason: noReason}
}

// Evaluate sets the verdict on record id. The reason is trimmed; a blank
// one is replaced by the no-reason phrase.
func (e *Evaluator) Evaluate(ctx context.Context, id int64, verdict model.Evaluation, reason string) error {
	r := strings.TrimSpace(reason)
	if r == "" {
		r = e.noReason
	}
	if err := e.store.RecordEvaluation(ctx, id, verdict, &r); err != nil {
		return eris.Wrapf(err, "investigator: evaluate %d", id)
	}
	zap.L().Info("investigator: evaluation recorded",
		zap.Int64("record_id", id),
		zap.String("verdict", string(verdict)),
	)
	return nil
}
