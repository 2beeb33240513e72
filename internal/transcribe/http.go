package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/version"
)

const (
	defaultHTTPModel      = "whisper-1"
	defaultRequestTimeout = 2 * time.Minute
	maxErrorBody          = 4 << 10
)

// HTTPConfig configures an OpenAI-compatible /v1/audio/transcriptions endpoint.
type HTTPConfig struct {
	Endpoint   string
	APIKey     string
	Model      string
	MaxRetries int
	Backoff    time.Duration
	Client     *http.Client
}

// HTTP uploads each utterance as a 16-bit WAV file.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTP validates cfg and builds the client.
func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: transcription.http.endpoint is empty", ErrBackendUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = defaultHTTPModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		}
	}
	return &HTTP{cfg: cfg, client: client}, nil
}

func (h *HTTP) Name() string { return "http" }

func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

type httpTranscriptionResponse struct {
	Text string `json:"text"`
}

type httpErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError carries the server's message; Error returns it verbatim.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Transcribe uploads samples and retries transient failures with exponential backoff.
func (h *HTTP) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	wavData, err := encodeWAV(samples, sampleRate)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= h.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := h.cfg.Backoff << (attempt - 1)
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
		}

		text, err := h.doRequest(ctx, wavData, language)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (h *HTTP) doRequest(ctx context.Context, wavData []byte, language string) (string, error) {
	body, contentType, err := h.multipartBody(wavData, language)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if h.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &statusError{code: resp.StatusCode, message: errorMessage(resp.StatusCode, raw)}
	}

	var decoded httpTranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return decoded.Text, nil
}

func (h *HTTP) multipartBody(wavData []byte, language string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}

	fields := [][2]string{
		{"model", h.cfg.Model},
		{"response_format", "json"},
	}
	if language = strings.TrimSpace(language); language != "" {
		fields = append(fields, [2]string{"language", language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

// encodeWAV goes through a temp file because the WAV encoder seeks back to patch headers.
func encodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	f, err := os.CreateTemp("", "dictate-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := audio.EncodeWAV(f, samples, sampleRate); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp wav: %w", err)
	}
	return io.ReadAll(f)
}

func errorMessage(code int, raw []byte) string {
	var decoded httpErrorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && strings.TrimSpace(decoded.Error.Message) != "" {
		return strings.TrimSpace(decoded.Error.Message)
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return fmt.Sprintf("transcription endpoint returned HTTP %d", code)
}

func isRetryable(err error) bool {
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
