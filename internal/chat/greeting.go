package chat

import (
	"strings"
	"time"
)

// greetings are matched exactly after trimming and lowercasing. A
// question that merely contains a salutation still goes through
// retrieval.
var greetings = map[string]bool{
	"hi":           true,
	"hello":        true,
	"hey":          true,
	"what's up":    true,
	"how are you":  true,
	"good morning": true,
	"good evening": true,
}

// IsGreeting reports whether text is a salutation-only input.
func IsGreeting(text string) bool {
	return greetings[strings.ToLower(strings.TrimSpace(text))]
}

// Greeter produces a time-of-day greeting. now is injectable so tests can
// pin the clock.
type Greeter struct {
	now func() time.Time
}

// NewGreeter creates a greeter using the system clock.
func NewGreeter() *Greeter {
	return &Greeter{now: time.Now}
}

// NewGreeterAt creates a greeter with a fixed clock.
func NewGreeterAt(now func() time.Time) *Greeter {
	return &Greeter{now: now}
}

// Respond returns the greeting for the current time of day.
func (g *Greeter) Respond() string {
	switch hour := g.now().Hour(); {
	case hour < 12:
		return "Good morning! How can I help you today?"
	case hour < 18:
		return "Good afternoon! How can I help you today?"
	default:
		return "Good evening! How can I help you today?"
	}
}
