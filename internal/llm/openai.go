package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultBaseURL         = "https://api.openai.com/v1"
	defaultTranscribeModel = "whisper-1"
)

// OpenAIClient talks to an OpenAI-compatible API for chat completions
// and audio transcription.
type OpenAIClient struct {
	baseURL         string
	apiKey          string
	model           string
	transcribeModel string
	maxTokens       int
	temperature     float64
	client          *http.Client
	maxRetries      int
}

// NewOpenAIClient creates a client for the given endpoint and model.
// maxTokens and temperature are fixed per client since answers from the
// retrieval pipeline should be short and deterministic.
func NewOpenAIClient(baseURL, apiKey, model string, maxTokens int, temperature float64) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing API key")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		baseURL:         baseURL,
		apiKey:          apiKey,
		model:           model,
		transcribeModel: defaultTranscribeModel,
		maxTokens:       maxTokens,
		temperature:     temperature,
		client:          &http.Client{Timeout: 120 * time.Second},
		maxRetries:      5,
	}, nil
}

// Generate sends the messages to the chat completions endpoint and
// returns the assistant's reply.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		payload, retryable, err := c.post(ctx, c.baseURL+"/chat/completions", "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			if !retryable || attempt == c.maxRetries {
				return "", lastErr
			}
			if err := sleepCtx(ctx, backoff(attempt)); err != nil {
				return "", err
			}
			continue
		}
		return parseCompletion(payload)
	}
	return "", lastErr
}

// Transcribe uploads audio to the transcription endpoint and returns the
// recognized text. filename carries the extension the server uses to
// detect the audio format.
func (c *OpenAIClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := w.WriteField("model", c.transcribeModel); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	payload, _, err := c.post(ctx, c.baseURL+"/audio/transcriptions", w.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}

func (c *OpenAIClient) post(ctx context.Context, url, contentType string, body io.Reader) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, convErr := strconv.Atoi(ra); convErr == nil {
				_ = sleepCtx(ctx, time.Duration(secs)*time.Second)
			}
		}
		return nil, true, fmt.Errorf("completion request failed: %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("completion request failed: %s", resp.Status)
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return payload, false, nil
}

func parseCompletion(payload []byte) (string, error) {
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Close releases client resources.
func (c *OpenAIClient) Close() error {
	return nil
}

func backoff(attempt int) time.Duration {
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
