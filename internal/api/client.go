package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client talks to the readback analysis backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  *TokenSource
}

// NewClient creates a backend client. The timeout bounds the whole upload,
// including the audio body; tokens may be nil for unauthenticated use.
func NewClient(baseURL string, timeout time.Duration, tokens *TokenSource) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Detail     string // server-supplied detail, if any
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend status %d", e.StatusCode)
}

// IsNetworkError reports whether err means the backend was unreachable.
// Timeouts are deliberately excluded; they surface as a generic failure.
func IsNetworkError(err error) bool {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return false
	}
	return !urlErr.Timeout()
}

// Analyze uploads one recorded transmission as multipart form data and
// decodes the backend's judgment.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("read audio file: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("session_id", req.SessionID); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("write session_id field: %w", err)
	}
	if err := writer.WriteField("frequency", req.Frequency); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("write frequency field: %w", err)
	}

	// CreateFormFile always sets Content-Type: application/octet-stream.
	// The backend wants the real audio MIME type, so build the part manually.
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="audio_file"; filename="%s"`, filepath.Base(req.AudioPath)))
	partHeader.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("create audio part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/analyze", &buf)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			httpReq.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("post audio: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil {
			statusErr.Detail = eb.Detail
		}
		return AnalyzeResponse{}, statusErr
	}

	var out AnalyzeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, nil
}
