package llm

import (
	"context"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatProvider provides chat completion APIs. Completions are non-streaming;
// drafting an outreach email is a single bounded response.
type ChatProvider interface {
	Chat(ctx context.Context, model string, messages []Message, temperature float32) (string, error)
}

// Embedder provides embedding generation APIs. Every returned vector has the
// model's fixed dimensionality.
type Embedder interface {
	Embeddings(ctx context.Context, model string, inputs []string) ([][]float32, error)
}
