// Package whisperapi talks to an OpenAI-compatible transcription endpoint
// (POST /v1/audio/transcriptions, multipart upload, verbose_json response).
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwhuang/segscribe/pkg/backends"
	"github.com/cwhuang/segscribe/pkg/logger"
)

const (
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "whisper-1"
)

// Backend implements backends.Backend over HTTP.
type Backend struct {
	apiKey     string
	baseURL    string
	model      string
	language   string
	timeout    time.Duration
	retries    int
	httpClient *http.Client
}

// Option customizes the backend.
type Option func(*Backend)

// WithBaseURL points the backend at a self-hosted compatible server.
func WithBaseURL(url string) Option {
	return func(b *Backend) { b.baseURL = strings.TrimRight(url, "/") }
}

// WithModel sets the model name sent with each request.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithLanguage sets the language hint sent with each request.
func WithLanguage(language string) Option {
	return func(b *Backend) { b.language = language }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(b *Backend) {
		b.timeout = timeout
		b.httpClient.Timeout = timeout
	}
}

// WithRetries sets the number of retry attempts.
func WithRetries(retries int) Option {
	return func(b *Backend) { b.retries = retries }
}

// New creates an HTTP transcription backend.
func New(apiKey string, options ...Option) *Backend {
	b := &Backend{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		timeout: 300 * time.Second,
		retries: 3,
	}
	b.httpClient = &http.Client{Timeout: b.timeout}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "whisper-api"
}

// apiSegment is one span of the verbose_json response.
type apiSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// apiResponse is the verbose_json transcription response.
type apiResponse struct {
	Text     string       `json:"text"`
	Segments []apiSegment `json:"segments"`
}

// Transcribe uploads the audio file and converts the response into a Result.
func (b *Backend) Transcribe(ctx context.Context, path string) (*backends.Result, error) {
	log := logger.WithComponent("whisperapi").WithField("file", filepath.Base(path))

	body, contentType, err := b.buildRequestBody(path)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= b.retries; attempt++ {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt).Msg("Retrying transcription request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		result, err := b.doRequest(ctx, body, contentType)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("transcription request failed after %d attempts: %w", b.retries+1, lastErr)
}

// buildRequestBody assembles the multipart upload once; retries reuse it.
func (b *Backend) buildRequestBody(path string) ([]byte, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to read audio file: %w", err)
	}

	_ = writer.WriteField("model", b.model)
	_ = writer.WriteField("response_format", "verbose_json")
	if b.language != "" {
		_ = writer.WriteField("language", b.language)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize request body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

func (b *Backend) doRequest(ctx context.Context, body []byte, contentType string) (*backends.Result, error) {
	url := fmt.Sprintf("%s/v1/audio/transcriptions", b.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return parseResponse(respBody)
}

// parseResponse converts a verbose_json payload into a Result.
func parseResponse(data []byte) (*backends.Result, error) {
	var apiResp apiResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	result := &backends.Result{Text: strings.TrimSpace(apiResp.Text)}
	for _, seg := range apiResp.Segments {
		start, end := seg.Start, seg.End
		result.Segments = append(result.Segments, backends.Segment{
			Text:  strings.TrimSpace(seg.Text),
			Start: &start,
			End:   &end,
		})
	}

	return result, nil
}
