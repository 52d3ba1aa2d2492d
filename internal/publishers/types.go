// Package publishers normalizes the publishing protocols of each social platform behind one Publisher interface.
package publishers

import (
	"context"
	"errors"

	"social-publisher/internal/model"
)

// Publisher is the capability set every platform adapter implements.
type Publisher interface {
	Platform() model.Platform

	// Publish never lets a transport or API failure escape: they come back as a failed PostResult.
	// The error is only set for a thread that failed part way (*model.ThreadError); the result is
	// then failed as well and the error lists the posts that stayed published.
	Publish(ctx context.Context, req model.PostRequest) (*model.PostResult, error)

	// Delete returns nil once the post no longer exists, including when the platform reports it missing.
	Delete(ctx context.Context, postID string) error

	Metrics(ctx context.Context, postID string) (map[string]any, error)
	AccountInfo(ctx context.Context) (map[string]any, error)

	// ValidateCredentials returns false with a nil error when the platform rejected the credential,
	// and a non-nil error when the check itself could not be completed.
	ValidateCredentials(ctx context.Context) (bool, error)

	// Comments returns an empty slice on platforms without comment access.
	Comments(ctx context.Context, postID string, limit int) ([]model.Comment, error)
}

// DeleteSucceeded is the boolean view of a Delete result.
func DeleteSucceeded(err error) bool {
	return err == nil || model.IsNotFound(err)
}

// IsUnsupported reports whether err signals an operation the platform does not offer.
func IsUnsupported(err error) bool {
	var op *model.UnsupportedOperationError
	var pl *model.UnsupportedPlatformError
	return errors.As(err, &op) || errors.As(err, &pl)
}
