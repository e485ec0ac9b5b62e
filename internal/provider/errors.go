package provider

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPollExhausted       = errors.New("transaction still pending after the last poll")
	ErrPollStopped         = errors.New("polling stopped by caller")
)

// ValidationError rejects a request before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// AuthenticationError is the provider refusing our client credentials.
type AuthenticationError struct {
	StatusCode int
	Body       string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: status=%d body=%s", e.StatusCode, e.Body)
}

// TokenRefreshError means the refresh path is unavailable. The session
// manager recovers from it by acquiring a new pair.
type TokenRefreshError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TokenRefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("token refresh failed: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *TokenRefreshError) Unwrap() error { return e.Err }

// TokenAcquisitionError is fatal for the operation that needed a token.
type TokenAcquisitionError struct {
	Err error
}

func (e *TokenAcquisitionError) Error() string {
	return fmt.Sprintf("could not obtain provider token: %v", e.Err)
}

func (e *TokenAcquisitionError) Unwrap() error { return e.Err }

// ProtocolError is a provider response we could not make sense of. Excerpt
// is a truncated body for operators only.
type ProtocolError struct {
	Op      string
	Excerpt string
	Err     error
}

func (e *ProtocolError) Error() string {
	msg := e.Op + ": unexpected provider response"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Excerpt != "" {
		msg += " (body: " + e.Excerpt + ")"
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Excerpt truncates a raw body to n bytes for logs and ProtocolError.
func Excerpt(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsFatal reports whether err must not be retried: bad input, rejected
// credentials, or a response we cannot interpret.
func IsFatal(err error) bool {
	var (
		auth  *AuthenticationError
		acq   *TokenAcquisitionError
		proto *ProtocolError
	)
	return IsValidation(err) || errors.As(err, &auth) || errors.As(err, &acq) || errors.As(err, &proto)
}

// APIError is a non-2xx provider answer to a call that is neither
// authentication nor cash-in (those have their own shapes).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider api error: status=%d message=%s", e.StatusCode, e.Message)
}
