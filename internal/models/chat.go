package models

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one utterance in a conversation. Order within a conversation is
// insertion order; there is no explicit timestamp.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// Answer is the result of one question/answer cycle. Sources lists the
// distinct document sources of the passages the answer was conditioned on,
// in retrieval order; it is empty for greetings and suppressed answers.
// Suppressed marks answers replaced by the low-confidence disclosure.
type Answer struct {
	Text       string   `json:"answer"`
	Sources    []string `json:"sources"`
	Suppressed bool     `json:"suppressed,omitempty"`
}
