// Package llm answers questions about document text with an Anthropic model.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/doc-investigator/pkg/anthropic"
)

// Failure kinds. Callers treat every one of them as "no answer".
var (
	ErrRateLimited   = errors.New("llm rate limited")
	ErrSafetyBlocked = errors.New("llm response blocked")
	ErrTimeout       = errors.New("llm timeout")
	ErrUnknown       = errors.New("llm failure")
)

// Completer produces an answer for a question about contextText.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, contextText, question string) (string, error)
}

// Config holds generation and pacing parameters.
type Config struct {
	Model             string
	MaxTokens         int64
	Temperature       float64
	TopP              float64
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client implements Completer on top of the Anthropic wrapper.
type Client struct {
	api     anthropic.Client
	cfg     Config
	limiter *rate.Limiter
}

// New returns a Client. A zero RequestsPerMinute disables pacing.
func New(api anthropic.Client, cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{api: api, cfg: cfg, limiter: limiter}
}

// Complete sends one request. The returned error always matches one of the
// failure kinds.
func (c *Client) Complete(ctx context.Context, systemPrompt, contextText, question string) (string, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", Classify(err)
	}

	temp, topP := c.cfg.Temperature, c.cfg.TopP
	req := anthropic.MessageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System: append(
			[]anthropic.SystemBlock{{Text: systemPrompt}},
			anthropic.BuildCachedSystemBlocks(contextBlock(contextText))...,
		),
		Messages:    []anthropic.Message{{Role: "user", Content: question}},
		Temperature: &temp,
	}
	if topP > 0 {
		req.TopP = &topP
	}

	start := time.Now()
	resp, err := c.api.CreateMessage(ctx, req)
	if err != nil {
		classified := Classify(err)
		zap.L().Warn("llm: request failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(classified),
		)
		return "", classified
	}
	zap.L().Info("llm: usage", append(resp.Usage.Fields(c.cfg.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Duration("elapsed", time.Since(start)),
	)...)

	if resp.StopReason == anthropic.StopReasonRefusal {
		return "", eris.Wrapf(ErrSafetyBlocked, "llm: stop reason %s", resp.StopReason)
	}
	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return "", eris.Wrapf(ErrUnknown, "llm: empty response (stop reason %q)", resp.StopReason)
	}

	zap.L().Debug("llm: answered",
		zap.String("model", c.cfg.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("answer_chars", len(answer)),
	)
	return answer, nil
}

func contextBlock(text string) string {
	return "CONTEXT:\n" + text
}

// Classify maps a transport or API error onto a failure kind. Errors already
// classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrRateLimited, ErrSafetyBlocked, ErrTimeout, ErrUnknown} {
		if errors.Is(err, kind) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(ErrTimeout, "llm: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return eris.Wrapf(ErrTimeout, "llm: %v", err)
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests, 529: // 529: overloaded
			return eris.Wrapf(ErrRateLimited, "llm: %v", err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return eris.Wrapf(ErrTimeout, "llm: %v", err)
		}
	}

	// rate.Limiter reports a wait that would outlast the deadline this way.
	if strings.Contains(err.Error(), "would exceed context deadline") {
		return eris.Wrapf(ErrTimeout, "llm: %v", err)
	}
	return eris.Wrapf(ErrUnknown, "llm: %v", err)
}
