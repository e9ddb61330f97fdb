package llm

import "context"

// MockClient is a configurable classifier client for testing.
// Set the response fields to control what Complete returns.
type MockClient struct {
	CompleteResponse string
	CompleteError    error

	// CompleteFunc, when set, overrides the static response fields.
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Call tracking for assertions
	CompleteCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{
		CompleteResponse: "{}",
	}
}

func (c *MockClient) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	c.CompleteCalls = append(c.CompleteCalls, prompt)
	if c.CompleteFunc != nil {
		return c.CompleteFunc(ctx, prompt, maxTokens)
	}
	if c.CompleteError != nil {
		return "", c.CompleteError
	}
	return c.CompleteResponse, nil
}
