package normalizer

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"logredact/internal/models"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))
}

func newTestNormalizer() *Normalizer {
	return New(WithIDGenerator(sequentialIDs()), WithClock(fixedClock))
}

func TestNormalizeJSON(t *testing.T) {
	n := newTestNormalizer()

	env, err := n.Normalize(Request{
		Headers: Headers{"content-type": "application/json"},
		Body:    []byte(`{"tenant_id":"t1","text":"call 555-1234"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.TenantID != "t1" || env.Text != "call 555-1234" {
		t.Errorf("fields not copied: %+v", env)
	}
	if env.LogID != "gen-1" {
		t.Errorf("expected generated log_id, got %q", env.LogID)
	}
	if env.Source != models.SourceJSONUpload {
		t.Errorf("expected json_upload, got %q", env.Source)
	}
	if env.IngestedAt.Location() != time.UTC || !env.IngestedAt.Equal(fixedClock()) {
		t.Errorf("ingested_at should be the clock time in UTC, got %v", env.IngestedAt)
	}
}

func TestNormalizeJSONKeepsSuppliedLogID(t *testing.T) {
	n := newTestNormalizer()

	for i := 0; i < 3; i++ {
		env, err := n.Normalize(Request{
			ContentType: "application/json",
			Body:        []byte(`{"tenant_id":"t1","text":"x","log_id":"client-42"}`),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.LogID != "client-42" {
			t.Errorf("supplied log_id not passed through: %q", env.LogID)
		}
	}
}

func TestNormalizeJSONEmptyLogIDIsGenerated(t *testing.T) {
	n := newTestNormalizer()

	env, err := n.Normalize(Request{
		ContentType: "application/json",
		Body:        []byte(`{"tenant_id":"t1","text":"x","log_id":""}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.LogID != "gen-1" {
		t.Errorf("expected generated log_id, got %q", env.LogID)
	}
}

func TestNormalizeText(t *testing.T) {
	n := newTestNormalizer()

	env, err := n.Normalize(Request{
		Headers: Headers{"Content-Type": "text/plain", "X-Tenant-ID": "t2", "log_id": "ignored"},
		Body:    []byte("hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.TenantID != "t2" || env.Text != "hello" {
		t.Errorf("fields not copied: %+v", env)
	}
	if env.LogID != "gen-1" {
		t.Errorf("text uploads always get a generated log_id, got %q", env.LogID)
	}
	if env.Source != models.SourceTextUpload {
		t.Errorf("expected text_upload, got %q", env.Source)
	}
}

func TestNormalizeTextBodyLooksLikeJSON(t *testing.T) {
	n := newTestNormalizer()

	body := `{"tenant_id":"other","log_id":"mine","text":"x"}`
	env, err := n.Normalize(Request{
		Headers: Headers{"content-type": "text/plain", "x-tenant-id": "t2"},
		Body:    []byte(body),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.LogID == "mine" || env.TenantID != "t2" || env.Text != body {
		t.Errorf("text body must be taken verbatim: %+v", env)
	}
}

func TestNormalizeGeneratesFreshIDs(t *testing.T) {
	n := New()
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		env, err := n.Normalize(Request{
			Headers: Headers{"content-type": "text/plain", "x-tenant-id": "t"},
			Body:    []byte("hello"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[env.LogID] {
			t.Fatalf("duplicate log_id %q", env.LogID)
		}
		seen[env.LogID] = true
	}
}

func TestNormalizeContentTypeDispatch(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantSource  models.Source
		wantErr     error
	}{
		{"json with charset", "application/json; charset=utf-8", `{"tenant_id":"t","text":"x"}`, models.SourceJSONUpload, nil},
		{"upper case json", "Application/JSON", `{"tenant_id":"t","text":"x"}`, models.SourceJSONUpload, nil},
		{"text with charset", "text/plain; charset=utf-8", "x", models.SourceTextUpload, nil},
		{"substring match", "multipart/application/json", `{"tenant_id":"t","text":"x"}`, models.SourceJSONUpload, nil},
		{"json wins over text", "text/plain, application/json", `{"tenant_id":"t","text":"x"}`, models.SourceJSONUpload, nil},
		{"xml", "application/xml", "<x/>", "", ErrUnsupportedContentType},
		{"html", "text/html", "x", "", ErrUnsupportedContentType},
		{"missing", "", "x", "", ErrUnsupportedContentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNormalizer()
			env, err := n.Normalize(Request{
				Headers: Headers{"content-type": tt.contentType, "x-tenant-id": "t"},
				Body:    []byte(tt.body),
			})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if env != nil {
					t.Error("rejection must not return an envelope")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if env.Source != tt.wantSource {
				t.Errorf("expected source %q, got %q", tt.wantSource, env.Source)
			}
		})
	}
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"json missing tenant", Request{ContentType: "application/json", Body: []byte(`{"text":"x"}`)}, ErrMissingRequiredField},
		{"json missing text", Request{ContentType: "application/json", Body: []byte(`{"tenant_id":"t"}`)}, ErrMissingRequiredField},
		{"json empty text", Request{ContentType: "application/json", Body: []byte(`{"tenant_id":"t","text":""}`)}, ErrMissingRequiredField},
		{"json empty body", Request{ContentType: "application/json"}, ErrMissingRequiredField},
		{"json null", Request{ContentType: "application/json", Body: []byte(`null`)}, ErrMissingRequiredField},
		{"json syntax error", Request{ContentType: "application/json", Body: []byte(`{"tenant_id":`)}, ErrMalformedBody},
		{"json wrong type", Request{ContentType: "application/json", Body: []byte(`{"tenant_id":"t","text":42}`)}, ErrMalformedBody},
		{"json array", Request{ContentType: "application/json", Body: []byte(`[{"tenant_id":"t","text":"x"}]`)}, ErrMalformedBody},
		{"text missing header", Request{ContentType: "text/plain", Body: []byte("hello")}, ErrMissingRequiredField},
		{"text empty body", Request{ContentType: "text/plain", Headers: Headers{"x-tenant-id": "t"}}, ErrMissingRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := newTestNormalizer().Normalize(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if env != nil {
				t.Error("rejection must not return an envelope")
			}
		})
	}
}

func TestNormalizeWhitespaceIsNotTrimmed(t *testing.T) {
	env, err := newTestNormalizer().Normalize(Request{
		ContentType: "application/json",
		Body:        []byte(`{"tenant_id":" t1 ","text":"  spaced  "}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.TenantID != " t1 " || env.Text != "  spaced  " {
		t.Errorf("values must be kept verbatim: %+v", env)
	}
}

func TestHeadersGet(t *testing.T) {
	h := Headers{"X-Tenant-ID": "t1", "content-type": "text/plain"}

	if got := h.Get("x-tenant-id"); got != "t1" {
		t.Errorf("case-insensitive lookup failed: %q", got)
	}
	if got := h.Get("Content-Type"); got != "text/plain" {
		t.Errorf("case-insensitive lookup failed: %q", got)
	}
	if got := h.Get("missing"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}

func TestNewHeadersCaseCollision(t *testing.T) {
	raw := map[string]string{"x-tenant-id": "lower", "X-Tenant-ID": "canonical", "X-TENANT-ID": "upper"}

	for i := 0; i < 20; i++ {
		h := NewHeaders(raw)
		if len(h) != 1 {
			t.Fatalf("expected one folded key, got %v", h)
		}
		// "X-TENANT-ID" sorts first
		if got := h.Get("x-tenant-id"); got != "upper" {
			t.Fatalf("run %d: got %q, want the value of the smallest name", i, got)
		}
	}
}

func TestHeadersFromHTTPLowercasesNames(t *testing.T) {
	hh := http.Header{}
	hh.Set("X-Tenant-ID", "t1")

	h := HeadersFromHTTP(hh)
	if _, ok := h["x-tenant-id"]; !ok {
		t.Errorf("expected lower-cased key, got %v", h)
	}
	if h.Get("X-Tenant-Id") != "t1" {
		t.Errorf("lookup failed: %v", h)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{nil, 202, MessageAccepted},
		{fmt.Errorf("%w: x", ErrUnsupportedContentType), 400, MessageUnsupportedType},
		{fmt.Errorf("%w: text", ErrMissingRequiredField), 400, MessageMissingField},
		{fmt.Errorf("%w: eof", ErrMalformedBody), 400, MessageMalformedBody},
		{ErrConfigurationMissing, 500, MessageInternalError},
		{fmt.Errorf("%w: broker down", ErrBufferWrite), 500, MessageInternalError},
		{errors.New("anything else"), 500, MessageInternalError},
	}

	for _, tt := range tests {
		status, msg := Outcome(tt.err)
		if status != tt.wantStatus || msg != tt.wantMsg {
			t.Errorf("Outcome(%v) = %d %q, want %d %q", tt.err, status, msg, tt.wantStatus, tt.wantMsg)
		}
	}
}
