package service

import (
	"errors"
	"fmt"
)

// SubmissionErrorKind classifies why a delivery attempt failed.
type SubmissionErrorKind string

const (
	KindConfiguration SubmissionErrorKind = "configuration"
	KindDelivery      SubmissionErrorKind = "delivery"
	KindNetwork       SubmissionErrorKind = "network"
)

var (
	// ErrConfiguration matches submissions refused because relay credentials are incomplete.
	ErrConfiguration = errors.New("contact delivery is not configured")
	// ErrDelivery matches submissions the relay answered with a non-success status.
	ErrDelivery = errors.New("contact relay rejected the message")
	// ErrNetwork matches submissions that never reached the relay.
	ErrNetwork = errors.New("contact relay unreachable")
)

// SubmissionError is returned by contact delivery for every failed attempt.
type SubmissionError struct {
	Kind SubmissionErrorKind
	Err  error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return string(e.Kind) + " error"
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the sentinel of the error kind.
func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrDelivery:
		return e.Kind == KindDelivery
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// SubmissionErrorKindOf returns the kind of a submission error, or "" when err is not one.
func SubmissionErrorKindOf(err error) SubmissionErrorKind {
	var submissionErr *SubmissionError
	if errors.As(err, &submissionErr) {
		return submissionErr.Kind
	}
	return ""
}
