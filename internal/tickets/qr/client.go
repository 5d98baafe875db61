package qr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ms-ticket-lifecycle/internal/monitoring"
)

type decodeResult struct {
	Type   string         `json:"type"`
	Symbol []decodeSymbol `json:"symbol"`
}

type decodeSymbol struct {
	Seq   int     `json:"seq"`
	Data  *string `json:"data"`
	Error *string `json:"error"`
}

// DecodeClient talks to an HTTP QR reading service that accepts either an
// image URL (GET ?fileurl=) or a multipart upload (POST file=) and answers
// with a JSON list of results. Only the first symbol of the first result
// is consulted.
type DecodeClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewDecodeClient(baseURL string, timeout time.Duration) *DecodeClient {
	return &DecodeClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// DecodeURL asks the service to fetch and read the image at imageURL.
func (c *DecodeClient) DecodeURL(ctx context.Context, imageURL string) (string, error) {
	const op = "qr.DecodeClient.DecodeURL"

	q := url.Values{}
	q.Set("fileurl", imageURL)
	q.Set("outputformat", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	data, err := c.do(req, "url")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

// DecodeImage uploads image bytes (PNG or JPEG) for reading.
func (c *DecodeClient) DecodeImage(ctx context.Context, image []byte, filename string) (string, error) {
	const op = "qr.DecodeClient.DecodeImage"

	if filename == "" {
		filename = "frame.png"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := w.WriteField("outputformat", "json"); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, &body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	data, err := c.do(req, "upload")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (c *DecodeClient) do(req *http.Request, mode string) (string, error) {
	start := time.Now()
	status := "error"
	defer func() { monitoring.TrackDecode(mode, status, time.Since(start)) }()

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return "", req.Context().Err()
		}
		return "", fmt.Errorf("%w: %v", ErrDecodeServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d", ErrDecodeServiceUnavailable, resp.StatusCode)
	}

	var results []decodeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("%w: bad response: %v", ErrDecodeServiceUnavailable, err)
	}

	status = "ok"
	return firstSymbol(results)
}

func firstSymbol(results []decodeResult) (string, error) {
	if len(results) == 0 || len(results[0].Symbol) == 0 {
		return "", ErrNoSymbol
	}

	sym := results[0].Symbol[0]
	if sym.Error != nil && *sym.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrNoSymbol, *sym.Error)
	}
	if sym.Data == nil || strings.TrimSpace(*sym.Data) == "" {
		return "", ErrEmptyDecode
	}
	return *sym.Data, nil
}
