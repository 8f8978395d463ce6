package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"busboard/internal/ports"
)

// Client calls a remote OCR service over HTTP. The caller bounds each call
// with a context deadline; the client itself sets no timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.OCRExtractor = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

type extractResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) ExtractText(ctx context.Context, image []byte) (ports.Extraction, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "schedule")
	if err != nil {
		return ports.Extraction{}, err
	}
	if _, err := part.Write(image); err != nil {
		return ports.Extraction{}, err
	}
	if err := mw.Close(); err != nil {
		return ports.Extraction{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return ports.Extraction{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.Extraction{}, fmt.Errorf("ocr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ports.Extraction{}, fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, snippet)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ports.Extraction{}, fmt.Errorf("decode ocr response: %w", err)
	}
	return ports.Extraction{Text: out.Text, Confidence: out.Confidence}, nil
}
