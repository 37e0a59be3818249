package model

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidVerdict is returned when a verdict string is not YES or NO.
var ErrInvalidVerdict = errors.New("invalid verdict")

// AnswerSource records where an answer came from.
type AnswerSource string

const (
	AnswerSourceLLM   AnswerSource = "LLM"
	AnswerSourceCache AnswerSource = "CACHE"
)

// Valid reports whether s is a known answer source.
func (s AnswerSource) Valid() bool {
	switch s {
	case AnswerSourceLLM, AnswerSourceCache:
		return true
	default:
		return false
	}
}

// Evaluation is the human verdict on an answer. UNSET until the user rates it.
type Evaluation string

const (
	EvaluationUnset Evaluation = "UNSET"
	EvaluationYes   Evaluation = "YES"
	EvaluationNo    Evaluation = "NO"
)

// IsVerdict reports whether e is a terminal verdict (YES or NO).
func (e Evaluation) IsVerdict() bool {
	return e == EvaluationYes || e == EvaluationNo
}

// ParseVerdict converts user input ("yes", "No", "y") into a terminal verdict.
func ParseVerdict(s string) (Evaluation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return EvaluationYes, nil
	case "no", "n":
		return EvaluationNo, nil
	default:
		return "", ErrInvalidVerdict
	}
}

// InteractionRecord is one logged question/answer exchange plus its later
// human evaluation. Question, Answer, DocumentFingerprint, AnswerSource and
// CreatedAt are write-once; only the evaluation fields change after insert.
type InteractionRecord struct {
	ID                  int64        `json:"id"`
	DocumentFingerprint string       `json:"document_fingerprint"`
	Question            string       `json:"question"`
	Answer              string       `json:"answer"`
	AnswerSource        AnswerSource `json:"answer_source"`
	Evaluation          Evaluation   `json:"evaluation"`
	EvaluationReason    *string      `json:"evaluation_reason,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	EvaluatedAt         *time.Time   `json:"evaluated_at,omitempty"`
}

// Reason returns the evaluation reason or an empty string.
func (r InteractionRecord) Reason() string {
	if r.EvaluationReason == nil {
		return ""
	}
	return *r.EvaluationReason
}
