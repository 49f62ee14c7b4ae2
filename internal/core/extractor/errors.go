package extractor

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL          = errors.New("invalid url")
	ErrInvalidSourceURL    = errors.New("invalid source url")
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrAcquisitionFailed is the family every exhausted strategy reports.
	ErrAcquisitionFailed = errors.New("acquisition failed")
	ErrNoMediaFound      = errors.New("no media files found")
	ErrNoAudioFound      = errors.New("no audio files found")
	ErrExtractionFailed  = errors.New("extraction failed")
)

// AcquisitionError is returned once a strategy has exhausted its tactics.
// It matches ErrAcquisitionFailed, its Reason, and the last tactic error.
type AcquisitionError struct {
	Platform Platform
	Reason   error
	Err      error
}

func (e *AcquisitionError) Error() string {
	reason := ErrAcquisitionFailed
	if e.Reason != nil {
		reason = e.Reason
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Platform, reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Platform, reason)
}

func (e *AcquisitionError) Unwrap() []error {
	errs := []error{ErrAcquisitionFailed}
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func acquisitionError(p Platform, reason, last error) error {
	return &AcquisitionError{Platform: p, Reason: reason, Err: last}
}
