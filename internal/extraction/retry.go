package extraction

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// maxRetries bounds how many times a rate-limited call is reattempted
	// after the initial one.
	maxRetries = 5
	// initialBackoff is the first retry delay; it doubles on every
	// subsequent rate-limited attempt (4s, 8s, 16s, 32s, 64s).
	initialBackoff = 4 * time.Second
)

// isRateLimited reports whether an error is a rate-limit rejection from the
// remote service. Gemini surfaces these as HTTP 429 via googleapi or as gRPC
// ResourceExhausted; other providers just put "429" in the message.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		return true
	}
	return strings.Contains(err.Error(), "429")
}

// withRetry runs fn, retrying rate-limited failures with doubling backoff.
// All other errors are returned immediately. When retries are exhausted the
// final rate-limit error is wrapped and surfaced as a terminal failure.
func withRetry(sleep func(time.Duration), fn func() (string, error)) (string, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		text, err := fn()
		if err == nil || !isRateLimited(err) {
			return text, err
		}
		if attempt >= maxRetries {
			return "", fmt.Errorf("rate limited after %d attempts: %w", attempt+1, err)
		}
		sleep(backoff)
		backoff *= 2
	}
}
