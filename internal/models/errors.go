package models

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned before any network call when no API key is configured.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrGenerationInProgress is returned when a run is requested while another is outstanding.
	ErrGenerationInProgress = errors.New("report generation already in progress")
	// ErrReportNotFound is returned by stores for an unknown report id.
	ErrReportNotFound = errors.New("report not found")
	// ErrEmptyResponse is returned when the model produced no candidate text.
	ErrEmptyResponse = errors.New("empty model response")
	// ErrInvalidReport is returned when a parsed object does not satisfy the report schema.
	ErrInvalidReport = errors.New("invalid report")
)

// MalformedResponseError carries the raw model reply that could not be
// turned into a report.
type MalformedResponseError struct {
	Raw   string
	Cause error
}

func (e *MalformedResponseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed model response: %v", e.Cause)
	}
	return "malformed model response"
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// ErrorClass groups failures by how they are handled and reported.
type ErrorClass string

const (
	ErrorClassNone           ErrorClass = ""
	ErrorClassQuota          ErrorClass = "quota"
	ErrorClassOverloaded     ErrorClass = "overloaded"
	ErrorClassNetwork        ErrorClass = "network"
	ErrorClassEmpty          ErrorClass = "empty"
	ErrorClassMalformed      ErrorClass = "malformed"
	ErrorClassAuth           ErrorClass = "auth"
	ErrorClassInvalidRequest ErrorClass = "invalid_request"
	ErrorClassBusy           ErrorClass = "busy"
	ErrorClassUnknown        ErrorClass = "unknown"
)

// Retryable reports whether errors of this class may be retried.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrorClassQuota, ErrorClassOverloaded, ErrorClassNetwork, ErrorClassEmpty:
		return true
	}
	return false
}

// StatusMessage returns the short human-readable status for an error class.
func StatusMessage(class ErrorClass) string {
	switch class {
	case ErrorClassNone:
		return "Report published."
	case ErrorClassQuota:
		return "API quota exceeded. Generation will resume after the quota window resets."
	case ErrorClassOverloaded:
		return "The model service is overloaded. Please try again shortly."
	case ErrorClassNetwork:
		return "Network error while contacting the model service."
	case ErrorClassEmpty:
		return "The model returned an empty response."
	case ErrorClassMalformed:
		return "The model response could not be parsed into a report."
	case ErrorClassAuth:
		return "API key is missing or invalid. Set GEMINI_API_KEY and restart the run."
	case ErrorClassInvalidRequest:
		return "The model rejected the request. Check the configured model name."
	case ErrorClassBusy:
		return "A report is already being generated."
	default:
		return "Report generation failed."
	}
}
