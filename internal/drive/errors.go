// Package drive provides an HTTP client for the Google Drive v3 API
// with automatic retry, error classification, resumable uploads, and
// OAuth2 authentication.
package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification.
// Use errors.Is(err, drive.ErrNotFound) to check.
var (
	ErrBadRequest    = errors.New("drive: bad request")
	ErrUnauthorized  = errors.New("drive: unauthorized")
	ErrForbidden     = errors.New("drive: forbidden")
	ErrNotFound      = errors.New("drive: not found")
	ErrConflict      = errors.New("drive: conflict")
	ErrRateLimited   = errors.New("drive: rate limited")
	ErrQuotaExceeded = errors.New("drive: storage quota exceeded")
	ErrServerError   = errors.New("drive: server error")
)

// ErrNotLoggedIn is returned when no saved token exists.
var ErrNotLoggedIn = errors.New("drive: not logged in")

// ErrSessionExpired is returned when a resumable upload session URI is no
// longer valid (the API answers 404 for expired or canceled sessions).
var ErrSessionExpired = errors.New("drive: upload session expired")

// ErrChecksumMismatch is returned when the MD5 the API reports for a
// completed upload does not match the local content.
var ErrChecksumMismatch = errors.New("drive: checksum mismatch")

// Reasons the API reports inside 403 bodies that mean "slow down" rather
// than "denied". These are retryable; other 403 reasons are not.
var rateLimitReasons = map[string]bool{
	"userRateLimitExceeded": true,
	"rateLimitExceeded":     true,
	"dailyLimitExceeded":    true,
}

const reasonQuotaExceeded = "storageQuotaExceeded"

// DriveError wraps a sentinel error with the HTTP status code, the API
// error reason, and the message body for debugging.
type DriveError struct {
	StatusCode int
	Reason     string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *DriveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("drive: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}

	return fmt.Sprintf("drive: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *DriveError) Unwrap() error {
	return e.Err
}

// apiErrorBody mirrors the JSON error envelope the Drive API returns.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// parseAPIError extracts the reason and message from a Drive error body.
// Malformed bodies yield empty reason and the raw body as message.
func parseAPIError(body []byte) (reason, message string) {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", string(body)
	}

	message = parsed.Error.Message
	if len(parsed.Error.Errors) > 0 {
		reason = parsed.Error.Errors[0].Reason
	}

	if message == "" {
		message = string(body)
	}

	return reason, message
}

// newDriveError builds a DriveError from a status code and error body.
func newDriveError(statusCode int, body []byte) *DriveError {
	reason, message := parseAPIError(body)

	return &DriveError{
		StatusCode: statusCode,
		Reason:     reason,
		Message:    message,
		Err:        classifyStatus(statusCode, reason),
	}
}

// classifyStatus maps an HTTP status code (and, for 403, the API reason)
// to a sentinel error. Returns nil for 2xx success codes.
func classifyStatus(code int, reason string) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		if rateLimitReasons[reason] {
			return ErrRateLimited
		}

		if reason == reasonQuotaExceeded {
			return ErrQuotaExceeded
		}

		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// isRetryable reports whether a request that failed with the given status
// code and reason should be retried. Drive reports per-user rate limiting
// as 403 with a rate-limit reason, not only as 429.
func isRetryable(code int, reason string) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case http.StatusForbidden:
		return rateLimitReasons[reason]
	default:
		return false
	}
}
