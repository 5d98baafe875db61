package scanner

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"sync"
	"time"
)

// Frame is one captured image, already encoded for upload.
type Frame struct {
	Image    []byte
	Filename string
}

// Source yields frames. Capture returning ErrDeviceLost ends the session;
// any other error is a soft failure for that tick.
type Source interface {
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// EncodePNG encodes a frame the way it is uploaded to the decode service.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SnapshotCamera polls an IP camera's still-image endpoint.
type SnapshotCamera struct {
	URL string
	// MaxConsecutiveFailures failed captures in a row mark the device lost.
	MaxConsecutiveFailures int

	client   *http.Client
	mu       sync.Mutex
	failures int
	closed   bool
}

func NewSnapshotCamera(url string, timeout time.Duration, maxFailures int) *SnapshotCamera {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	return &SnapshotCamera{
		URL:                    url,
		MaxConsecutiveFailures: maxFailures,
		client:                 &http.Client{Timeout: timeout},
	}
}

func (c *SnapshotCamera) Capture(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, ErrSourceClosed
	}
	c.mu.Unlock()

	frame, err := c.snapshot(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.failures = 0
		return frame, nil
	}
	if ctx.Err() != nil {
		return Frame{}, ctx.Err()
	}
	c.failures++
	if c.failures >= c.MaxConsecutiveFailures {
		return Frame{}, fmt.Errorf("%w: %d consecutive failures, last: %v", ErrDeviceLost, c.failures, err)
	}
	return Frame{}, err
}

func (c *SnapshotCamera) snapshot(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Frame{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("snapshot status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot decode: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return Frame{}, fmt.Errorf("snapshot is empty")
	}

	encoded, err := EncodePNG(img)
	if err != nil {
		return Frame{}, fmt.Errorf("frame encode: %w", err)
	}
	return Frame{Image: encoded, Filename: "frame.png"}, nil
}

// Close releases the device. It is safe to call more than once.
func (c *SnapshotCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.client.CloseIdleConnections()
	}
	return nil
}

// StaticImage serves the same uploaded image on every capture.
type StaticImage struct {
	Data     []byte
	Filename string
}

func (s *StaticImage) Capture(ctx context.Context) (Frame, error) {
	if len(s.Data) == 0 {
		return Frame{}, fmt.Errorf("static image is empty")
	}
	name := s.Filename
	if name == "" {
		name = "upload.png"
	}
	return Frame{Image: s.Data, Filename: name}, nil
}

func (s *StaticImage) Close() error { return nil }
