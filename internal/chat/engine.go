package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Sentinel errors distinguishing which external collaborator failed. Both
// are infrastructure failures and must surface as a generic error to the
// user, never as a low-confidence disclosure.
var (
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")
)

// Engine runs one question through the full cycle: greeting check,
// retrieval, generation, and confidence gating.
type Engine struct {
	retriever *Retriever
	generator llm.Generator
	gate      *Gate
	greeter   *Greeter
	window    int
	logger    *zap.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithGreeter overrides the greeter, mainly to pin the clock in tests.
func WithGreeter(g *Greeter) EngineOption {
	return func(e *Engine) {
		e.greeter = g
	}
}

// NewEngine creates the query engine. cfg controls the history window,
// the fallback phrase set, and the disclosure text.
func NewEngine(cfg *config.ChatConfig, retriever *Retriever, generator llm.Generator, opts ...EngineOption) *Engine {
	window := cfg.HistoryWindow
	if window == 0 {
		window = config.DefaultHistoryWindow
	}
	if window < 0 {
		window = 0
	}
	e := &Engine{
		retriever: retriever,
		generator: generator,
		gate:      NewGate(cfg.FallbackPhrases, cfg.Disclosure),
		greeter:   NewGreeter(),
		window:    window,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ask answers the question within the given conversation. On success the
// question and answer are appended to the conversation; on error the
// conversation is left unchanged.
func (e *Engine) Ask(ctx context.Context, conv *Conversation, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("empty question")
	}

	if IsGreeting(question) {
		text := e.greeter.Respond()
		conv.Append(models.SpeakerUser, question)
		conv.Append(models.SpeakerAssistant, text)
		return &models.Answer{Text: text}, nil
	}

	passages, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	raw, err := e.generator.Generate(ctx, buildMessages(question, passages, conv.Window(e.window)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	answer := &models.Answer{Text: raw, Sources: dedupSources(passages)}
	if e.gate.Suppressed(raw) {
		e.logger.Debug("answer suppressed by confidence gate",
			zap.String("question", utils.Truncate(question, 120)))
		answer = &models.Answer{Text: e.gate.Disclosure(), Suppressed: true}
	}

	conv.Append(models.SpeakerUser, question)
	conv.Append(models.SpeakerAssistant, answer.Text)
	return answer, nil
}

// dedupSources returns the distinct sources of the passages, preserving
// retrieval order.
func dedupSources(passages []models.Passage) []string {
	seen := make(map[string]bool, len(passages))
	var sources []string
	for _, p := range passages {
		if p.Source == "" || seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		sources = append(sources, p.Source)
	}
	return sources
}
