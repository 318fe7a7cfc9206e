package normalizer

import (
	"errors"
	"net/http"
)

// Rejection and failure kinds, matched with errors.Is
var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrMalformedBody          = errors.New("malformed body")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrConfigurationMissing   = errors.New("buffer target is not configured")
	ErrBufferWrite            = errors.New("failed to write to buffer")
)

// Client-facing reasons
const (
	MessageAccepted        = "Accepted"
	MessageUnsupportedType = "Unsupported Content-Type"
	MessageMissingField    = "Missing tenant_id or text content"
	MessageMalformedBody   = "Malformed request body"
	MessageInternalError   = "Internal Server Error"
)

// Outcome maps the result of Accept to a response status and a message
// that is safe to show to the caller.
func Outcome(err error) (status int, message string) {
	switch {
	case err == nil:
		return http.StatusAccepted, MessageAccepted
	case errors.Is(err, ErrUnsupportedContentType):
		return http.StatusBadRequest, MessageUnsupportedType
	case errors.Is(err, ErrMissingRequiredField):
		return http.StatusBadRequest, MessageMissingField
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, MessageMalformedBody
	default:
		return http.StatusInternalServerError, MessageInternalError
	}
}

// Reason returns a short label for metrics
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnsupportedContentType):
		return "unsupported_content_type"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(err, ErrMalformedBody):
		return "malformed_body"
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrBufferWrite):
		return "buffer_write"
	default:
		return "internal"
	}
}

// IsClientError reports whether err is the caller's fault
func IsClientError(err error) bool {
	status, _ := Outcome(err)
	return status >= 400 && status < 500
}
