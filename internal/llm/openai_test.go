package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		var req struct {
			Model       string    `json:"model"`
			Messages    []Message `json:"messages"`
			MaxTokens   int       `json:"max_tokens"`
			Temperature float64   `json:"temperature"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.MaxTokens != 300 || req.Temperature != 0 {
			t.Errorf("max_tokens=%d temperature=%f", req.MaxTokens, req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != RoleSystem {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"42"}}]}`)
	}))
	defer srv.Close()

	c, err := NewOpenAIClient(srv.URL, "test-key", "gpt-4o-mini", 300, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "answer briefly"},
		{Role: RoleUser, Content: "what is the answer"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "42" {
		t.Errorf("reply = %q, want 42", got)
	}
}

func TestOpenAIClient_GenerateRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient(srv.URL, "test-key", "", 300, 0)
	got, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" || calls != 2 {
		t.Errorf("got=%q calls=%d", got, calls)
	}
}

func TestOpenAIClient_GenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient(srv.URL, "test-key", "", 300, 0)
	if _, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if hdr.Filename != "question.wav" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		fmt.Fprint(w, `{"text":"what are the zoning rules"}`)
	}))
	defer srv.Close()

	c, _ := NewOpenAIClient(srv.URL, "test-key", "", 300, 0)
	got, err := c.Transcribe(context.Background(), strings.NewReader("RIFFdata"), "question.wav")
	if err != nil {
		t.Fatal(err)
	}
	if got != "what are the zoning rules" {
		t.Errorf("transcript = %q", got)
	}
}

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	if _, err := NewOpenAIClient("", "", "", 300, 0); err == nil {
		t.Error("expected error for missing key")
	}
}
