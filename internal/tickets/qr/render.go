package qr

import (
	"fmt"
	"image/color"
	"net/url"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"ms-ticket-lifecycle/internal/config"
)

// RenderOptions mirror the query parameters of the external encode service.
type RenderOptions struct {
	Size    int
	Color   string // hex foreground, no leading '#'
	BgColor string
	ECC     string // L, M, Q or H
	Margin  int
	QZone   int
}

func DefaultRenderOptions(cfg config.QRConfig) RenderOptions {
	return RenderOptions{
		Size:    cfg.Size,
		Color:   cfg.Color,
		BgColor: cfg.BgColor,
		ECC:     cfg.ECC,
		Margin:  2,
		QZone:   1,
	}
}

func (o RenderOptions) normalized() RenderOptions {
	if o.Size <= 0 {
		o.Size = 256
	}
	o.Color = strings.TrimPrefix(o.Color, "#")
	if o.Color == "" {
		o.Color = "000000"
	}
	o.BgColor = strings.TrimPrefix(o.BgColor, "#")
	if o.BgColor == "" {
		o.BgColor = "ffffff"
	}
	o.ECC = strings.ToUpper(o.ECC)
	if o.ECC == "" {
		o.ECC = "M"
	}
	return o
}

// BuildEncodeURL returns an image URL on the external encode service that
// renders payload with opts.
func BuildEncodeURL(baseURL, payload string, opts RenderOptions) string {
	opts = opts.normalized()

	params := url.Values{}
	params.Set("data", payload)
	params.Set("size", fmt.Sprintf("%dx%d", opts.Size, opts.Size))
	params.Set("color", opts.Color)
	params.Set("bgcolor", opts.BgColor)
	params.Set("margin", strconv.Itoa(opts.Margin))
	params.Set("qzone", strconv.Itoa(opts.QZone))
	params.Set("format", "png")
	params.Set("ecc", opts.ECC)

	return baseURL + "?" + params.Encode()
}

// Renderer draws QR codes locally, for deployments without access to the
// encode service.
type Renderer struct{}

func (Renderer) PNG(payload string, opts RenderOptions) ([]byte, error) {
	const op = "qr.Renderer.PNG"

	opts = opts.normalized()

	code, err := qrcode.New(payload, recoveryLevel(opts.ECC))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if code.ForegroundColor, err = parseHexColor(opts.Color); err != nil {
		return nil, fmt.Errorf("%s: foreground: %w", op, err)
	}
	if code.BackgroundColor, err = parseHexColor(opts.BgColor); err != nil {
		return nil, fmt.Errorf("%s: background: %w", op, err)
	}
	code.DisableBorder = opts.QZone == 0 && opts.Margin == 0

	png, err := code.PNG(opts.Size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return png, nil
}

func recoveryLevel(ecc string) qrcode.RecoveryLevel {
	switch ecc {
	case "L":
		return qrcode.Low
	case "Q":
		return qrcode.High
	case "H":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

func parseHexColor(s string) (color.Color, error) {
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
