package twelvedata

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCandle reports a candle whose price fields are not finite numbers.
// It signals a contract break with the provider, not transient unavailability.
var ErrInvalidCandle = errors.New("invalid candle")

// ErrorKind classifies a failed provider request.
type ErrorKind string

const (
	KindHTTP       ErrorKind = "http"        // transport failure or non-2xx status
	KindBadRequest ErrorKind = "bad_request" // code 400
	KindBadKey     ErrorKind = "bad_key"     // code 401
	KindRateLimit  ErrorKind = "rate_limit"  // code 429 or quota message
	KindProvider   ErrorKind = "provider"    // any other error payload
	KindMalformed  ErrorKind = "malformed"   // unexpected response shape
	KindEmpty      ErrorKind = "empty"       // no candles returned
)

// ProviderError is a transient provider-side failure. Retrying with another key may succeed.
type ProviderError struct {
	Kind    ErrorKind
	Code    int    // provider error code, when one was sent
	Message string // provider message or local description
	Err     error  // underlying transport error, if any
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString("twelvedata ")
	b.WriteString(string(e.Kind))
	if e.Code != 0 {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Kind == kind
}

// classifyPayload maps a provider error payload to a ProviderError.
func classifyPayload(code int, message string) *ProviderError {
	kind := KindProvider
	switch {
	case code == 429 || isQuotaMessage(message):
		kind = KindRateLimit
	case code == 400:
		kind = KindBadRequest
	case code == 401:
		kind = KindBadKey
	}
	return &ProviderError{Kind: kind, Code: code, Message: message}
}

func isQuotaMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "api credits") ||
		strings.Contains(m, "quota") ||
		strings.Contains(m, "rate limit")
}
