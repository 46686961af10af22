package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// Input errors: the caller sent something we cannot work with.
var (
	ErrInvalidKMZ         = errors.New("invalid KMZ")
	ErrAntennaNotFound    = errors.New("antenna not found in KMZ")
	ErrAmbiguousAntenna   = errors.New("more than one antenna candidate in KMZ")
	ErrUnknownTemplate    = errors.New("unknown template")
	ErrInsufficientPoints = errors.New("profile needs two points with [lat, lon]")
	ErrInvalidProfile     = errors.New("invalid profile request")
	ErrInvalidBounds      = errors.New("invalid bounds")
	ErrStudyNotFound      = errors.New("study not found")
)

// Upstream errors: an external collaborator failed us.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamMalformed   = errors.New("upstream returned malformed data")
	ErrElevationCount      = errors.New("unexpected number of elevation samples")
)

// UpstreamError carries the raw status and body of a non-success response.
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsInputError reports whether err should be surfaced as a client error.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidKMZ, ErrAntennaNotFound, ErrAmbiguousAntenna, ErrUnknownTemplate,
		ErrInsufficientPoints, ErrInvalidProfile, ErrInvalidBounds,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsUpstreamError reports whether err originated in an external collaborator.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) ||
		errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrUpstreamMalformed) ||
		errors.Is(err, ErrElevationCount)
}

// ResponseReadError classifies a failure while reading or decoding an upstream
// body. Timeouts and cancellations mean the collaborator went away, not that
// it answered badly.
func ResponseReadError(what string, err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamUnavailable, what, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstreamMalformed, what, err)
}
