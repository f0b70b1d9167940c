package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/pkg/utils"
)

// genericError is returned for infrastructure failures. Internal detail
// stays in the logs; a suppressed low-confidence answer is a normal 200
// response and never uses this path.
const genericError = "something went wrong, please try again"

type queryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	SessionID  string   `json:"session_id"`
	Suppressed bool     `json:"suppressed,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	s.logger.Debug("query request",
		zap.String("session_id", req.SessionID),
		zap.String("question", utils.Truncate(req.Question, 200)))

	sess, sessionID := s.sessions.acquire(req.SessionID)
	defer sess.mu.Unlock()

	answer, err := s.engine.Ask(r.Context(), sess.conv, req.Question)
	if err != nil {
		if errors.Is(err, chat.ErrRetrieval) || errors.Is(err, chat.ErrGeneration) {
			s.logger.Error("query failed", zap.String("session_id", sessionID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, genericError)
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	s.respondJSON(w, http.StatusOK, queryResponse{
		Answer:     answer.Text,
		Sources:    sources,
		SessionID:  sessionID,
		Suppressed: answer.Suppressed,
	})
}

type ingestRequest struct {
	Paths []string `json:"paths,omitempty"`
	Dir   string   `json:"dir,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	dir := req.Dir
	if dir == "" && len(req.Paths) == 0 {
		dir = s.config.Ingest.DataDir
	}
	s.logger.Debug("ingest request", zap.String("dir", dir), zap.Int("paths", len(req.Paths)))

	var err error
	var stats interface{}
	if dir != "" {
		stats, err = s.pipeline.RunDir(r.Context(), dir)
	} else {
		stats, err = s.pipeline.Run(r.Context(), req.Paths)
	}
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, genericError)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

type transcribeResponse struct {
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	SessionID  string   `json:"session_id"`
	Suppressed bool     `json:"suppressed,omitempty"`
}

// handleTranscribe turns an uploaded audio question into text and answers
// it through the engine, so a voice query behaves like a typed one. An
// optional session_id form field continues an existing conversation.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.respondError(w, http.StatusNotImplemented, "transcription not configured")
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	f, hdr, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer f.Close()

	text, err := s.transcriber.Transcribe(r.Context(), f, hdr.Filename)
	if err != nil {
		s.logger.Error("transcription failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, genericError)
		return
	}
	if strings.TrimSpace(text) == "" {
		s.respondError(w, http.StatusBadRequest, "transcription produced no text")
		return
	}
	s.logger.Debug("transcribed question",
		zap.String("question", utils.Truncate(text, 200)))

	sess, sessionID := s.sessions.acquire(r.FormValue("session_id"))
	defer sess.mu.Unlock()

	answer, err := s.engine.Ask(r.Context(), sess.conv, text)
	if err != nil {
		if errors.Is(err, chat.ErrRetrieval) || errors.Is(err, chat.ErrGeneration) {
			s.logger.Error("transcribed query failed", zap.String("session_id", sessionID), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, genericError)
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []string{}
	}
	s.respondJSON(w, http.StatusOK, transcribeResponse{
		Query:      text,
		Answer:     answer.Text,
		Sources:    sources,
		SessionID:  sessionID,
		Suppressed: answer.Suppressed,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count entries failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, genericError)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries":  count,
		"sessions": s.sessions.count(),
		"config": map[string]interface{}{
			"collection":      s.config.Index.Name,
			"namespace":       s.config.Index.Namespace,
			"dimension":       s.config.Index.Dimension,
			"embedding_model": s.config.Embedding.Model,
			"chat_model":      s.config.Chat.Model,
			"chunk_size":      s.config.Ingest.ChunkSize,
			"chunk_overlap":   s.config.Ingest.ChunkOverlap,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
