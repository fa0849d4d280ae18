package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPModel calls a self-hosted model server that accepts a multipart image
// upload and answers {"label": "...", "confidence": 87.5}.
type HTTPModel struct {
	url    string
	client *http.Client
}

// NewHTTPModel creates a client for the model server at url.
func NewHTTPModel(url string, client *http.Client) *HTTPModel {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPModel{url: url, client: client}
}

type httpModelResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

func (m *HTTPModel) Classify(ctx context.Context, image []byte, mimeType string) (Prediction, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "report"+extensionFor(mimeType))
	if err != nil {
		return Prediction{}, fmt.Errorf("build classifier request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return Prediction{}, fmt.Errorf("build classifier request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Prediction{}, fmt.Errorf("build classifier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, &body)
	if err != nil {
		return Prediction{}, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var result httpModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	if result.Error != "" {
		return Prediction{}, fmt.Errorf("classifier error: %s", result.Error)
	}

	return Prediction{Label: result.Label, Confidence: result.Confidence}, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
