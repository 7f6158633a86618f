package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"facemark-go/config"
	"facemark-go/internal/core/facerec"
)

// Client talks to the external face detector/encoder service. The service
// receives an image and returns zero or more fixed-length embeddings, one per
// detected face, plus bounding-box metadata.
type Client struct {
	config     config.RecognizerConfig
	httpClient *http.Client
}

// FaceObservation is one detected face in a frame.
type FaceObservation struct {
	BoundingBox []int             `json:"bbox"`
	Confidence  float64           `json:"confidence"`
	Embedding   facerec.Embedding `json:"embedding"`
}

type apiInfoResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

type apiDetectResponse struct {
	Status     string            `json:"status"`
	FacesCount int               `json:"faces_count"`
	Faces      []FaceObservation `json:"faces"`
}

// NewClient creates a new recognizer client.
func NewClient(cfg config.RecognizerConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Ping checks whether the recognizer service is reachable.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	if !c.config.Enabled {
		return false, fmt.Errorf("recognizer is not enabled")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s/info", c.config.URL), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach recognizer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("recognizer not available, status: %d", resp.StatusCode)
	}

	var info apiInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return info.Status == "ok", nil
}

// Detect sends an image to the recognizer and returns the detected faces
// with their embeddings. An image with no faces yields an empty slice, not
// an error.
func (c *Client) Detect(ctx context.Context, imageData []byte, filename string) ([]FaceObservation, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}

	if err := writer.WriteField("threshold", fmt.Sprintf("%f", c.config.DetProbThreshold)); err != nil {
		return nil, fmt.Errorf("failed to write threshold field: %w", err)
	}
	if err := writer.WriteField("extract_embedding", "true"); err != nil {
		return nil, fmt.Errorf("failed to write extract_embedding field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/detect", c.config.URL), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp apiDetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("recognizer error: %s", apiResp.Status)
	}

	return apiResp.Faces, nil
}
