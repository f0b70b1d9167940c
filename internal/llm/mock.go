package llm

import (
	"context"
	"io"
)

// MockGenerator returns scripted replies for tests. When Replies runs
// out the last entry is repeated.
type MockGenerator struct {
	Replies []string
	Err     error
	Calls   [][]Message

	i int
}

func (m *MockGenerator) Generate(_ context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	reply := m.Replies[m.i]
	if m.i < len(m.Replies)-1 {
		m.i++
	}
	return reply, nil
}

func (m *MockGenerator) Close() error { return nil }

// MockTranscriber returns a fixed transcript.
type MockTranscriber struct {
	Text string
	Err  error
}

func (m *MockTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, audio)
	return m.Text, m.Err
}
