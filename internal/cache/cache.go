// Package cache answers repeated (document, question) pairs from the
// interaction log instead of calling the LLM again. There is no separate
// cache table: every stored interaction is a cache entry.
package cache

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/doc-investigator/internal/model"
)

// Finder is the read path of the record store used for lookups.
type Finder interface {
	FindAnswer(ctx context.Context, fingerprint, question string) (*model.InteractionRecord, error)
	CountBySource(ctx context.Context) (map[model.AnswerSource]int, error)
}

// Hit is a previously stored answer served from the log.
type Hit struct {
	Answer   string
	RecordID int64
}

// Stats summarises how often answers were served from the log.
type Stats struct {
	Total        int     `json:"total" yaml:"total"`
	LLMAnswers   int     `json:"llm_answers" yaml:"llm_answers"`
	CacheAnswers int     `json:"cache_answers" yaml:"cache_answers"`
	HitRate      float64 `json:"hit_rate" yaml:"hit_rate"`
}

// ResponseCache looks up prior answers. Questions match as exact bytes;
// no whitespace or case folding is applied.
type ResponseCache struct {
	finder Finder
}

// New creates a ResponseCache backed by the given store.
func New(finder Finder) *ResponseCache {
	return &ResponseCache{finder: finder}
}

// Get returns the most recent stored answer for the pair, or nil on a miss.
// Evaluation state is not consulted: an answer rated "not useful" is still a hit.
func (c *ResponseCache) Get(ctx context.Context, fingerprint, question string) (*Hit, error) {
	rec, err := c.finder.FindAnswer(ctx, fingerprint, question)
	if err != nil {
		return nil, eris.Wrap(err, "cache: lookup")
	}
	if rec == nil {
		zap.L().Info("cache miss", zap.String("key", shortKey(fingerprint)))
		return nil, nil
	}
	zap.L().Info("cache hit",
		zap.String("key", shortKey(fingerprint)),
		zap.Int64("record_id", rec.ID),
		zap.String("evaluation", string(rec.Evaluation)),
	)
	return &Hit{Answer: rec.Answer, RecordID: rec.ID}, nil
}

// GetOrNone returns the cached answer text and whether it was found.
func (c *ResponseCache) GetOrNone(ctx context.Context, fingerprint, question string) (string, bool, error) {
	hit, err := c.Get(ctx, fingerprint, question)
	if err != nil || hit == nil {
		return "", false, err
	}
	return hit.Answer, true, nil
}

// Stats reports answer provenance counts across the whole log.
func (c *ResponseCache) Stats(ctx context.Context) (Stats, error) {
	counts, err := c.finder.CountBySource(ctx)
	if err != nil {
		return Stats{}, eris.Wrap(err, "cache: stats")
	}

	s := Stats{
		LLMAnswers:   counts[model.AnswerSourceLLM],
		CacheAnswers: counts[model.AnswerSourceCache],
	}
	s.Total = s.LLMAnswers + s.CacheAnswers
	if s.Total > 0 {
		s.HitRate = float64(s.CacheAnswers) / float64(s.Total)
	}
	return s, nil
}

// shortKey trims a fingerprint for log output.
func shortKey(fingerprint string) string {
	const n = 17 // "sha256:" plus ten hex chars
	if len(fingerprint) <= n {
		return fingerprint
	}
	return fingerprint[:n] + "..."
}
