package chat

import "strings"

// Default phrase set and disclosure used when the configuration does not
// override them.
var defaultFallbackPhrases = []string{
	"i don't know",
	"i'm not sure",
	"i cannot answer that",
	"sorry, i don't know",
	"i do not have enough information",
}

const defaultDisclosure = "I have no idea about this thing. I am trained on very limited data, that is why I can't answer that question."

// Gate detects low-confidence answers by substring matching against a
// fixed phrase set. This is a lexical heuristic, not semantic confidence
// estimation: an answer that legitimately quotes a fallback phrase will
// be suppressed too.
type Gate struct {
	phrases    []string
	disclosure string
}

// NewGate creates a gate. Empty phrases or disclosure fall back to the
// built-in defaults.
func NewGate(phrases []string, disclosure string) *Gate {
	if len(phrases) == 0 {
		phrases = defaultFallbackPhrases
	}
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	if disclosure == "" {
		disclosure = defaultDisclosure
	}
	return &Gate{phrases: lowered, disclosure: disclosure}
}

// Suppressed reports whether the answer contains a fallback phrase,
// case-insensitively.
func (g *Gate) Suppressed(answer string) bool {
	lowered := strings.ToLower(answer)
	for _, p := range g.phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// Disclosure returns the canned message substituted for suppressed
// answers.
func (g *Gate) Disclosure() string {
	return g.disclosure
}
