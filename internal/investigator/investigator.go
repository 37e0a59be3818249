// Package investigator answers questions about uploaded documents: it
// consults the response cache, falls back to the language model, and logs
// every answer to the record store.
package investigator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/cache"
	"github.com/sells-group/doc-investigator/internal/llm"
	"github.com/sells-group/doc-investigator/internal/model"
)

var (
	// ErrNoDocuments is returned when a question arrives without documents.
	ErrNoDocuments = errors.New("no documents uploaded")
	// ErrEmptyQuestion is returned for blank questions.
	ErrEmptyQuestion = errors.New("empty question")
)

// Classification tells whether an answer is model-generated content or one
// of the fixed fallback phrases.
type Classification string

const (
	ClassReal       Classification = "real"
	ClassPredefined Classification = "predefined"
)

// DocumentProcessor validates uploads and builds the model context.
type DocumentProcessor interface {
	Validate(docs []model.Document) error
	Process(ctx context.Context, docs []model.Document) (string, error)
}

// AnswerCache looks up previously logged answers.
type AnswerCache interface {
	Get(ctx context.Context, fingerprint, question string) (*cache.Hit, error)
}

// Recorder persists interactions.
type Recorder interface {
	Insert(ctx context.Context, fingerprint, question, answer string, source model.AnswerSource) (int64, error)
	RecordEvaluation(ctx context.Context, id int64, verdict model.Evaluation, reason *string) error
}

// DefaultNoReasonGiven is stored when a verdict arrives without a reason.
const DefaultNoReasonGiven = "no reason given"

// Options configures the fixed fallback phrases.
type Options struct {
	UnknownAnswer    string
	NotAllowedAnswer string
	NoReasonGiven    string
}

// Answer is the outcome of Ask.
type Answer struct {
	RecordID       int64              `json:"record_id"`
	Text           string             `json:"answer"`
	Source         model.AnswerSource `json:"answer_source"`
	Classification Classification     `json:"classification"`
	Fingerprint    string             `json:"document_fingerprint"`
	Documents      string             `json:"documents"`
}

// Investigator sequences cache, model and store for each question.
type Investigator struct {
	docs         DocumentProcessor
	cache        AnswerCache
	store        Recorder
	llm          llm.Completer
	evaluator    *Evaluator
	systemPrompt string
	unknown      string
	notAllowed   string
}

// New creates an Investigator.
func New(docs DocumentProcessor, c AnswerCache, st Recorder, completer llm.Completer, opts Options) *Investigator {
	if opts.UnknownAnswer == "" {
		opts.UnknownAnswer = llm.DefaultUnknownAnswer
	}
	if opts.NotAllowedAnswer == "" {
		opts.NotAllowedAnswer = llm.DefaultNotAllowedAnswer
	}
	return &Investigator{
		docs:         docs,
		cache:        c,
		store:        st,
		llm:          completer,
		evaluator:    NewEvaluator(st, opts.NoReasonGiven),
		systemPrompt: llm.SystemPrompt(opts.UnknownAnswer, opts.NotAllowedAnswer),
		unknown:      opts.UnknownAnswer,
		notAllowed:   opts.NotAllowedAnswer,
	}
}

// Ask answers question against docs. The cache is consulted before any
// extraction or model call. A record is inserted only once an answer exists;
// a failed or cancelled model call leaves the store untouched.
func (inv *Investigator) Ask(ctx context.Context, docs []model.Document, question string) (*Answer, error) {
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if err := inv.docs.Validate(docs); err != nil {
		return nil, err
	}

	fp := model.Fingerprint(docs...)
	names := model.DocumentNames(docs)
	log := zap.L().With(zap.String("documents", names))

	hit, err := inv.cache.Get(ctx, fp, question)
	if err != nil {
		return nil, eris.Wrap(err, "investigator: cache lookup")
	}

	source := model.AnswerSourceCache
	var text string
	if hit != nil {
		text = hit.Answer
	} else {
		source = model.AnswerSourceLLM
		text, err = inv.generate(ctx, log, docs, question)
		if err != nil {
			return nil, err
		}
	}

	id, err := inv.store.Insert(ctx, fp, question, text, source)
	if err != nil {
		return nil, eris.Wrap(err, "investigator: log interaction")
	}

	ans := &Answer{
		RecordID:       id,
		Text:           text,
		Source:         source,
		Classification: inv.Classify(text),
		Fingerprint:    fp,
		Documents:      names,
	}
	if ans.Classification == ClassPredefined {
		// A fixed fallback phrase is a non-answer: rate it NO right away.
		if err := inv.evaluator.Evaluate(ctx, id, model.EvaluationNo, ""); err != nil {
			return nil, eris.Wrap(err, "investigator: rate fallback answer")
		}
	}
	log.Info("investigator: answered",
		zap.Int64("record_id", id),
		zap.String("source", string(source)),
		zap.String("classification", string(ans.Classification)),
	)
	return ans, nil
}

func (inv *Investigator) generate(ctx context.Context, log *zap.Logger, docs []model.Document, question string) (string, error) {
	contextText, err := inv.docs.Process(ctx, docs)
	if err != nil {
		return "", eris.Wrap(err, "investigator: extract documents")
	}

	start := time.Now()
	answer, err := inv.llm.Complete(ctx, inv.systemPrompt, contextText, question)
	if err != nil {
		log.Warn("investigator: no answer from model",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", eris.Wrap(err, "investigator: generate answer")
	}
	return answer, nil
}

// Evaluate records a verdict. A blank reason is stored as the no-reason
// phrase.
func (inv *Investigator) Evaluate(ctx context.Context, id int64, verdict model.Evaluation, reason string) error {
	return inv.evaluator.Evaluate(ctx, id, verdict, reason)
}

// Classify reports whether answer is one of the fixed fallback phrases.
func (inv *Investigator) Classify(answer string) Classification {
	a := strings.TrimSpace(answer)
	if a == inv.unknown || a == inv.notAllowed {
		return ClassPredefined
	}
	return ClassReal
}
