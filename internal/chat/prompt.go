package chat

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
)

const systemInstruction = "You are a helpful assistant. Answer the question using only the context below. " +
	"If the context does not contain the answer, say \"I don't know\"."

// buildMessages assembles the chat messages for generation: a system
// message carrying the retrieved context, the windowed conversation
// history, and the question itself.
func buildMessages(question string, passages []models.Passage, history []models.Turn) []llm.Message {
	var sb strings.Builder
	sb.WriteString(systemInstruction)
	if len(passages) > 0 {
		sb.WriteString("\n\nContext:\n")
		for _, p := range passages {
			fmt.Fprintf(&sb, "\n[%s]\n%s\n", p.Source, p.Text)
		}
	} else {
		sb.WriteString("\n\nContext: (no relevant passages found)")
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sb.String()})
	for _, turn := range history {
		role := llm.RoleUser
		if turn.Speaker == models.SpeakerAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: turn.Text})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}
