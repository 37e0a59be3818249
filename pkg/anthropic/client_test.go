package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	topP := 0.9
	req := MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		System:    BuildCachedSystemBlocks("--- CONTENT FROM a.txt ---\nhello"),
		Messages:  []Message{{Role: "user", Content: "What does it say?"}},
		TopP:      &topP,
	}
	expected := &MessageResponse{
		ID:         "msg_123",
		Content:    []ContentBlock{{Type: "text", Text: "hello"}},
		StopReason: StopReasonEndTurn,
		Usage:      TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
	mc.On("CreateMessage", ctx, req).Return(expected, nil)

	resp, err := mc.CreateMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text())
	mc.AssertExpectations(t)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "The release "},
		{Type: "thinking", Text: "ignored"},
		{Type: "text", Text: "year is 1999."},
	}}
	assert.Equal(t, "The release year is 1999.", resp.Text())
	assert.Equal(t, "", (&MessageResponse{}).Text())
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("context")
	require.Len(t, blocks, 1)
	assert.Equal(t, "context", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{StatusCode: 429, Message: "rate_limit_error"}
	assert.Equal(t, "anthropic: status 429: rate_limit_error", err.Error())
}

func TestNewParams(t *testing.T) {
	temp := 0.2
	params := newParams(MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   256,
		System:      append([]SystemBlock{{Text: "rules"}}, BuildCachedSystemBlocks("docs")...),
		Messages:    []Message{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}},
		Temperature: &temp,
	})

	assert.Equal(t, int64(256), params.MaxTokens)
	require.Len(t, params.System, 2)
	assert.Equal(t, "rules", params.System[0].Text)
	assert.Equal(t, "5m", string(params.System[1].CacheControl.TTL))
	require.Len(t, params.Messages, 2)
	assert.Equal(t, "user", string(params.Messages[0].Role))
	assert.Equal(t, "assistant", string(params.Messages[1].Role))
	assert.True(t, params.Temperature.Valid())
	assert.InDelta(t, 0.2, params.Temperature.Value, 1e-9)
	assert.False(t, params.TopP.Valid())
}
