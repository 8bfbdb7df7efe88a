package extraction

import "errors"

// Record is the flat key/value result of interpreting one document image.
// Values are whatever the model produced after JSON decoding: strings,
// numbers (float64) or nil for categories absent from the document.
type Record map[string]any

// ErrInvalidResponse indicates the model returned something that cannot be
// interpreted as an extraction result (no text, or text that is not JSON).
// It is surfaced instead of a raw parse error so callers can show a useful
// message. Never retried.
var ErrInvalidResponse = errors.New("invalid model response")

// Extractor defines the interface for turning one document image into a Record.
type Extractor interface {
	// Extract sends the image to the model and returns the extracted fields.
	// When columns is non-empty the returned record's keys are exactly that
	// set: unknown keys from the model are dropped and missing ones are nil.
	Extract(imageData []byte, contentType string, columns []string) (Record, error)
	// Close releases the underlying client resources.
	Close() error
}
