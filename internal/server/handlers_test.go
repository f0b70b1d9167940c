package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/vectordb"
)

const testDim = 8

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Index.Dimension = testDim
	cfg.Ingest.ChunkSize = 100
	cfg.Ingest.ChunkOverlap = 20
	cfg.Ingest.BatchSize = 10
	return cfg
}

func testServer(t *testing.T, store vectordb.Store, gen llm.Generator, transcriber llm.Transcriber) *Server {
	t.Helper()
	cfg := testConfig()
	embedder := embedding.NewMockEmbedder(testDim)
	retriever := chat.NewRetriever(embedder, store, cfg.Index.Namespace, cfg.Chat.TopK)
	engine := chat.NewEngine(&cfg.Chat, retriever, gen)
	pipeline := ingest.NewPipeline(&cfg.Ingest, cfg.Index.Namespace, embedder, store)
	return NewServer(engine, pipeline, transcriber, store, cfg, zap.NewNop())
}

func seedStore(t *testing.T, store vectordb.Store, source, text string) {
	t.Helper()
	v, err := embedding.NewMockEmbedder(testDim).Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	err = store.Insert(context.Background(), "default", []vectordb.Entry{
		{ID: source + ":0", Vector: v, Text: text, Source: source},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestHandleQuery(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "zoning.pdf", "The minimum setback is 6 meters.")
	gen := &llm.MockGenerator{Replies: []string{"The setback is 6 meters."}}
	srv := testServer(t, store, gen, nil)

	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{Question: "What is the setback?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out queryResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != "The setback is 6 meters." {
		t.Errorf("answer: got %q", out.Answer)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "zoning.pdf" {
		t.Errorf("sources: got %v", out.Sources)
	}
	if out.SessionID == "" {
		t.Error("a new session id should be assigned")
	}
}

func TestHandleQuery_SessionContinuity(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "a.txt", "context body")
	gen := &llm.MockGenerator{Replies: []string{"First.", "Second."}}
	srv := testServer(t, store, gen, nil)

	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{Question: "first question"})
	var first queryResponse
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}

	w = postJSON(t, srv.handleQuery, "/api/v1/query",
		queryRequest{Question: "second question", SessionID: first.SessionID})
	var second queryResponse
	if err := json.NewDecoder(w.Body).Decode(&second); err != nil {
		t.Fatal(err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q vs %q", first.SessionID, second.SessionID)
	}
	if srv.sessions.count() != 1 {
		t.Errorf("sessions: got %d, want 1", srv.sessions.count())
	}
	// The second generation must see the first exchange as history.
	msgs := gen.Calls[1]
	if len(msgs) != 4 || msgs[1].Content != "first question" {
		t.Errorf("history not forwarded: %+v", msgs)
	}
}

func TestHandleQuery_MissingQuestion(t *testing.T) {
	srv := testServer(t, vectordb.NewMemoryStore(testDim), &llm.MockGenerator{}, nil)

	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleQuery_GeneratorFailure(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "a.txt", "context body")
	gen := &llm.MockGenerator{Err: errors.New("upstream timeout")}
	srv := testServer(t, store, gen, nil)

	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{Question: "anything"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", w.Code)
	}
	if strings.Contains(w.Body.String(), "upstream timeout") {
		t.Error("internal error detail leaked to the client")
	}
}

func TestHandleQuery_SuppressedIsNotAnError(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	gen := &llm.MockGenerator{Replies: []string{"I don't know."}}
	srv := testServer(t, store, gen, nil)

	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{Question: "unknowable"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	var out queryResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Suppressed {
		t.Error("response should be marked suppressed")
	}
	if len(out.Sources) != 0 {
		t.Errorf("suppressed response has sources: %v", out.Sources)
	}
}

func TestHandleIngest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir+"/doc.txt", "some corpus content to index")

	store := vectordb.NewMemoryStore(testDim)
	srv := testServer(t, store, &llm.MockGenerator{}, nil)

	w := postJSON(t, srv.handleIngest, "/api/v1/ingest", ingestRequest{Dir: dir})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var stats ingest.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Files != 1 || stats.Chunks < 1 {
		t.Errorf("stats: %+v", stats)
	}
}

func postAudio(t *testing.T, srv *Server, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "q.wav")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("RIFFdata")); err != nil {
		t.Fatal(err)
	}
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			t.Fatal(err)
		}
	}
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleTranscribe(w, r)
	return w
}

func TestHandleTranscribe_AnswersTheQuestion(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "zoning.pdf", "The minimum setback is 6 meters.")
	gen := &llm.MockGenerator{Replies: []string{"The setback is 6 meters."}}
	srv := testServer(t, store, gen,
		&llm.MockTranscriber{Text: "what is the setback"})

	w := postAudio(t, srv, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out transcribeResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Query != "what is the setback" {
		t.Errorf("query: got %q", out.Query)
	}
	if out.Answer != "The setback is 6 meters." {
		t.Errorf("answer: got %q", out.Answer)
	}
	if len(out.Sources) != 1 || out.Sources[0] != "zoning.pdf" {
		t.Errorf("sources: got %v", out.Sources)
	}
	if out.SessionID == "" {
		t.Error("a new session id should be assigned")
	}
	// The generator must have been asked the transcribed question.
	if len(gen.Calls) != 1 || gen.Calls[0][len(gen.Calls[0])-1].Content != "what is the setback" {
		t.Errorf("generation calls: %+v", gen.Calls)
	}
}

func TestHandleTranscribe_ContinuesSession(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "a.txt", "context body")
	gen := &llm.MockGenerator{Replies: []string{"First.", "Second."}}
	srv := testServer(t, store, gen, &llm.MockTranscriber{Text: "spoken question"})

	var first queryResponse
	w := postJSON(t, srv.handleQuery, "/api/v1/query", queryRequest{Question: "typed question"})
	if err := json.NewDecoder(w.Body).Decode(&first); err != nil {
		t.Fatal(err)
	}

	w = postAudio(t, srv, first.SessionID)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out transcribeResponse
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.SessionID != first.SessionID {
		t.Errorf("session id changed: %q vs %q", first.SessionID, out.SessionID)
	}
	// The spoken turn must see the typed exchange as history.
	msgs := gen.Calls[1]
	if len(msgs) != 4 || msgs[1].Content != "typed question" {
		t.Errorf("history not forwarded: %+v", msgs)
	}
}

func TestHandleTranscribe_NotConfigured(t *testing.T) {
	srv := testServer(t, vectordb.NewMemoryStore(testDim), &llm.MockGenerator{}, nil)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/transcribe", nil)
	w := httptest.NewRecorder()
	srv.handleTranscribe(w, r)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	store := vectordb.NewMemoryStore(testDim)
	seedStore(t, store, "a.txt", "one entry")
	srv := testServer(t, store, &llm.MockGenerator{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Entries  int64 `json:"entries"`
		Sessions int   `json:"sessions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Entries != 1 {
		t.Errorf("entries: got %d, want 1", out.Entries)
	}
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, vectordb.NewMemoryStore(testDim), &llm.MockGenerator{}, nil)

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
