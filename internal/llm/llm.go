// Package llm provides chat completion and audio transcription clients
// speaking the OpenAI wire protocol.
package llm

import (
	"context"
	"io"

	"github.com/hyperjump/kotae/internal/config"
)

// Roles used in chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat message sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a completion for a sequence of chat messages.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
	Close() error
}

// Transcriber converts spoken audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// New creates the chat client from configuration.
func New(cfg *config.ChatConfig, apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClient(cfg.BaseURL, apiKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
}
