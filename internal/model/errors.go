package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthError is returned when the platform rejects the credential (HTTP 401).
type AuthError struct {
	Platform Platform
	Message  string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: authentication failed", e.Platform)
	}
	return fmt.Sprintf("%s: authentication failed: %s", e.Platform, e.Message)
}

// NotFoundError is returned when the remote object does not exist (HTTP 404 or platform equivalent).
type NotFoundError struct {
	Platform Platform
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found", e.Platform, e.Resource)
}

// ValidationError captures a missing or malformed input. It is never retried.
type ValidationError struct {
	Platform Platform
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Platform, e.Reason)
}

// APIError is a non-2xx response that is neither 401 nor 404.
type APIError struct {
	Platform Platform
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status=%d | %s", e.Platform, e.Status, e.Message)
}

// Retryable reports whether the status is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// TransientTransportError wraps a network level failure.
type TransientTransportError struct {
	Op  string
	Err error
}

func (e *TransientTransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientTransportError) Unwrap() error { return e.Err }

// UploadFailedError is returned once a chunk exhausted its attempts.
type UploadFailedError struct {
	Chunk    int
	Attempts int
	Err      error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload failed: chunk %d after %d attempts: %v", e.Chunk, e.Attempts, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// ProcessingFailedError is returned when a remote async job reports failure. Reason is passed through verbatim.
type ProcessingFailedError struct {
	ID     string
	State  string
	Reason string
}

func (e *ProcessingFailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("processing %s failed: state=%s", e.ID, e.State)
	}
	return fmt.Sprintf("processing %s failed: state=%s: %s", e.ID, e.State, e.Reason)
}

// ProcessingTimeoutError is returned when polling exhausted its attempts without a terminal state.
type ProcessingTimeoutError struct {
	ID        string
	Attempts  int
	LastState string
	Elapsed   time.Duration
}

func (e *ProcessingTimeoutError) Error() string {
	return fmt.Sprintf("processing %s not finished after %d attempts (last state %q)", e.ID, e.Attempts, e.LastState)
}

type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q", e.Platform)
}

type UnsupportedOperationError struct {
	Platform  Platform
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Platform, e.Operation)
}

// ThreadError reports a thread that failed part way. PublishedIDs holds the posts that stay live.
type ThreadError struct {
	Index        int
	PublishedIDs []string
	Err          error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread segment %d failed after %d published [%s]: %v",
		e.Index, len(e.PublishedIDs), strings.Join(e.PublishedIDs, ","), e.Err)
}

func (e *ThreadError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsPermanent reports whether retrying err cannot help.
func IsPermanent(err error) bool {
	var (
		ve  *ValidationError
		ae  *AuthError
		nf  *NotFoundError
		api *APIError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ae), errors.As(err, &nf):
		return true
	case errors.As(err, &api):
		return !api.Retryable()
	}
	return false
}
