package scanner

import (
	"context"
	"fmt"

	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/models"
)

// URLDecoder is a Decoder that can also read an image by URL.
type URLDecoder interface {
	Decoder
	DecodeURL(ctx context.Context, imageURL string) (string, error)
}

// OneShot decodes a single image or image URL and validates the result.
// Unlike a Session, decode failures are returned to the caller.
type OneShot struct {
	Decoder   URLDecoder
	Validator Validator
}

type OneShotResult struct {
	Text       string                 `json:"text"`
	Identity   *models.TicketIdentity `json:"identity"`
	Validation checkin.Result         `json:"validation"`
}

func (o *OneShot) FromURL(ctx context.Context, imageURL string) (*OneShotResult, error) {
	text, err := o.Decoder.DecodeURL(ctx, imageURL)
	if err != nil {
		return nil, fmt.Errorf("scanner.OneShot.FromURL: %w", err)
	}
	return o.validate(ctx, text)
}

func (o *OneShot) FromImage(ctx context.Context, image []byte, filename string) (*OneShotResult, error) {
	src := &StaticImage{Data: image, Filename: filename}
	frame, err := src.Capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner.OneShot.FromImage: %w", err)
	}

	text, err := o.Decoder.DecodeImage(ctx, frame.Image, frame.Filename)
	if err != nil {
		return nil, fmt.Errorf("scanner.OneShot.FromImage: %w", err)
	}
	return o.validate(ctx, text)
}

func (o *OneShot) validate(ctx context.Context, text string) (*OneShotResult, error) {
	identity, res, err := o.Validator.ValidateText(ctx, text)
	if err != nil {
		return nil, err
	}
	return &OneShotResult{Text: text, Identity: identity, Validation: res}, nil
}
