package anthropic

import "go.uber.org/zap"

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// Prompt-cache writes bill above the input rate, reads well below it.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.10
)

// prices covers the models anthropic.model is expected to name.
var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {input: 1.00, output: 5.00},
	"claude-sonnet-4-5-20250929": {input: 3.00, output: 15.00},
}

// Priced reports whether usage for model can be costed.
func Priced(model string) bool {
	_, ok := prices[model]
	return ok
}

// Cost returns the estimated USD cost of u under model. ok is false when
// the model has no price entry.
func (u TokenUsage) Cost(model string) (usd float64, ok bool) {
	p, ok := prices[model]
	if !ok {
		return 0, false
	}
	perM := func(n int64, rate float64) float64 { return float64(n) / 1e6 * rate }
	usd = perM(u.InputTokens, p.input) +
		perM(u.OutputTokens, p.output) +
		perM(u.CacheCreationInputTokens, p.input*cacheWriteFactor) +
		perM(u.CacheReadInputTokens, p.input*cacheReadFactor)
	return usd, true
}

// Fields renders u as structured log fields for model.
func (u TokenUsage) Fields(model string) []zap.Field {
	fields := []zap.Field{
		zap.String("model", model),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
	}
	if usd, ok := u.Cost(model); ok {
		return append(fields, zap.Float64("estimated_cost_usd", usd))
	}
	return append(fields, zap.Bool("priced", false))
}
