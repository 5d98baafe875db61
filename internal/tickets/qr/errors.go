package qr

import "errors"

var (
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrDecodeServiceUnavailable covers transport failures and non-2xx
	// replies from the decode service. Callers may retry.
	ErrDecodeServiceUnavailable = errors.New("decode service unavailable")
	// ErrNoSymbol means the service answered but found no readable code.
	ErrNoSymbol = errors.New("no qr symbol found")
	// ErrEmptyDecode means a symbol was found but carried no data.
	ErrEmptyDecode = errors.New("qr symbol contains no data")
)
