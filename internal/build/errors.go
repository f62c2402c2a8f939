package build

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by ResolutionError and PublishError.
var (
	ErrInvalidReference  = errors.New("build: invalid build reference")
	ErrBuildNotFound     = errors.New("build: build not found")
	ErrNoArtifacts       = errors.New("build: build produced no artifacts")
	ErrResolveTimeout    = errors.New("build: metadata lookup timed out")
	ErrImageNotAvailable = errors.New("build: image is not available")
	ErrInvalidParameter  = errors.New("build: invalid parameter name or value")
	ErrAccessDenied      = errors.New("build: access denied")
	ErrStoreUnavailable  = errors.New("build: parameter store unavailable")
)

// ResolutionError reports a failed metadata lookup for one build reference.
type ResolutionError struct {
	Reference string
	Err       error
}

func (e *ResolutionError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("resolve build: %v", e.Err)
	}
	return fmt.Sprintf("resolve build %s: %v", e.Reference, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// PublishError reports a failed write of the published parameter.
type PublishError struct {
	Name string
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish parameter %s: %v", e.Name, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// NewResolutionError wraps err for the given reference.
func NewResolutionError(ref string, err error) *ResolutionError {
	return &ResolutionError{Reference: ref, Err: err}
}

// NewPublishError wraps err for the given parameter name.
func NewPublishError(name string, err error) *PublishError {
	return &PublishError{Name: name, Err: err}
}

// IsResolutionError reports whether err carries a ResolutionError.
func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsPublishError reports whether err carries a PublishError.
func IsPublishError(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}
