// Package llm wraps the text-generation providers used to phrase replies and
// read bill images. Model output never drives control flow.
package llm

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoProviders is returned by an empty Chain.
var ErrNoProviders = errors.New("llm: no providers configured")

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model    string
	System   []string
	Messages []Message
	// MaxTokens of zero lets the provider choose.
	MaxTokens int32
	// Temperature below zero is left unset.
	Temperature float32
}

type Response struct {
	Text       string
	Provider   string
	Usage      TokenUsage
	StopReason string
}

// Client completes chat requests.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
