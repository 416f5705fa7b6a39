package gemini

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"google.golang.org/genai"

	"github.com/bobmcallan/pulse/internal/models"
)

// Classify maps an error from Generate (or the pipeline around it) onto an
// ErrorClass. Only quota, overloaded, network and empty are retryable.
func Classify(err error) models.ErrorClass {
	if err == nil {
		return models.ErrorClassNone
	}

	// an extractor failure stays malformed whatever its cause
	var malformed *models.MalformedResponseError
	if errors.As(err, &malformed) {
		return models.ErrorClassMalformed
	}

	switch {
	case errors.Is(err, models.ErrMissingCredential):
		return models.ErrorClassAuth
	case errors.Is(err, models.ErrEmptyResponse):
		return models.ErrorClassEmpty
	case errors.Is(err, models.ErrGenerationInProgress):
		return models.ErrorClassBusy
	case errors.Is(err, models.ErrInvalidReport):
		return models.ErrorClassMalformed
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	if errors.Is(err, context.Canceled) {
		return models.ErrorClassUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return models.ErrorClassNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return models.ErrorClassNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return models.ErrorClassNetwork
	}

	return classifyMessage(err.Error())
}

// IsRetryable reports whether err belongs to a retryable class.
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

func classifyAPIError(apiErr genai.APIError) models.ErrorClass {
	status := strings.ToUpper(apiErr.Status)
	msg := strings.ToLower(apiErr.Message)

	switch {
	case apiErr.Code == 429 || strings.Contains(status, "RESOURCE_EXHAUSTED"):
		return models.ErrorClassQuota
	case apiErr.Code == 503 || apiErr.Code == 502 || apiErr.Code == 504 ||
		strings.Contains(status, "UNAVAILABLE") || strings.Contains(msg, "overloaded"):
		return models.ErrorClassOverloaded
	case apiErr.Code == 401 || apiErr.Code == 403 ||
		strings.Contains(status, "UNAUTHENTICATED") || strings.Contains(status, "PERMISSION_DENIED") ||
		strings.Contains(msg, "api key not valid"):
		return models.ErrorClassAuth
	case apiErr.Code == 400 || apiErr.Code == 404 || strings.Contains(status, "INVALID_ARGUMENT"):
		return models.ErrorClassInvalidRequest
	}
	return models.ErrorClassUnknown
}

// classifyMessage is the fallback for errors that only carry text.
func classifyMessage(s string) models.ErrorClass {
	msg := strings.ToLower(s)
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota"):
		return models.ErrorClassQuota
	case strings.Contains(msg, "503") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "overloaded"):
		return models.ErrorClassOverloaded
	case strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "timeout"):
		return models.ErrorClassNetwork
	}
	return models.ErrorClassUnknown
}
