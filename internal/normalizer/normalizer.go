// Package normalizer turns heterogeneous submissions into envelopes and
// hands them to the buffer.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"logredact/internal/models"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain"
	headerTenantID  = "x-tenant-id"
)

// Headers holds request headers keyed by lower-cased name
type Headers map[string]string

// NewHeaders lower-cases header names. When names differ only in case the
// value of the lexically smallest original name wins.
func NewHeaders(h map[string]string) Headers {
	out := make(Headers, len(h))
	for _, k := range slices.Sorted(maps.Keys(h)) {
		lower := strings.ToLower(k)
		if _, ok := out[lower]; !ok {
			out[lower] = h[k]
		}
	}
	return out
}

// Get returns the value of the named header, ignoring case
func (h Headers) Get(name string) string {
	lower := strings.ToLower(name)
	if v, ok := h[lower]; ok {
		return v
	}
	// maps built without NewHeaders
	for _, k := range slices.Sorted(maps.Keys(h)) {
		if strings.EqualFold(k, lower) {
			return h[k]
		}
	}
	return ""
}

// HeadersFromHTTP flattens net/http headers, keeping the first value
func HeadersFromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

// Request is one inbound submission
type Request struct {
	// Declared content type; when empty it is read from the headers
	ContentType string
	Headers     Headers
	Body        []byte
}

// DeclaredContentType returns the content type used for dispatch
func (r Request) DeclaredContentType() string {
	if r.ContentType != "" {
		return r.ContentType
	}
	return r.Headers.Get("content-type")
}

// Normalizer converts requests into envelopes
type Normalizer struct {
	newID func() string
	now   func() time.Time
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithIDGenerator replaces the log_id generator
func WithIDGenerator(fn func() string) Option {
	return func(n *Normalizer) { n.newID = fn }
}

// WithClock replaces the ingestion clock
func WithClock(fn func() time.Time) Option {
	return func(n *Normalizer) { n.now = fn }
}

// New creates a Normalizer generating random UUIDs
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize dispatches on the declared content type and returns a complete
// envelope or one of the rejection errors. It has no side effects.
//
// Dispatch uses substring containment on the lower-cased content type, so
// "application/json; charset=utf-8" selects the JSON path.
func (n *Normalizer) Normalize(req Request) (*models.Envelope, error) {
	contentType := strings.ToLower(req.DeclaredContentType())

	var env *models.Envelope
	var err error

	switch {
	case strings.Contains(contentType, contentTypeJSON):
		env, err = n.fromJSON(req.Body)
	case strings.Contains(contentType, contentTypeText):
		env = n.fromText(req)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, req.DeclaredContentType())
	}
	if err != nil {
		return nil, err
	}

	if env.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id", ErrMissingRequiredField)
	}
	if env.Text == "" {
		return nil, fmt.Errorf("%w: text", ErrMissingRequiredField)
	}

	return env, nil
}

// fromJSON decodes the structured schema; log_id is kept when supplied
func (n *Normalizer) fromJSON(body []byte) (*models.Envelope, error) {
	var payload models.JSONIngestRequest

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
	}

	logID := payload.LogID
	if logID == "" {
		logID = n.newID()
	}

	return n.envelope(payload.TenantID, logID, payload.Text, models.SourceJSONUpload), nil
}

// fromText takes the tenant from the header and always generates log_id
func (n *Normalizer) fromText(req Request) *models.Envelope {
	tenantID := req.Headers.Get(headerTenantID)
	return n.envelope(tenantID, n.newID(), string(req.Body), models.SourceTextUpload)
}

func (n *Normalizer) envelope(tenantID, logID, text string, source models.Source) *models.Envelope {
	return &models.Envelope{
		TenantID:   tenantID,
		LogID:      logID,
		Text:       text,
		Source:     source,
		IngestedAt: n.now().UTC(),
	}
}
