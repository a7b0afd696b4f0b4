package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"
)

const validPayload = `{
	"parties": {"party_one": "Acme Corp", "party_two": "Widget LLC", "additional_parties": []},
	"dates": {"effective_date": "2024-01-01", "termination_date": null, "term_length": "2 years"},
	"clauses": {"governing_law": "Delaware", "termination": null, "confidentiality": "mutual NDA",
		"indemnification": null, "limitation_of_liability": null, "dispute_resolution": null,
		"payment_terms": "net 30", "intellectual_property": null},
	"confidence": 0.92,
	"summary": "Supply agreement."
}`

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
	return string(b)
}

// newTestClient points the client at a stub API and shrinks backoff so retry
// tests run fast.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		RateLimit:  100000,
	}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client, server
}

func TestExtractEmptyText(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for _, text := range []string{"", "   \n\t  "} {
		_, err := client.Extract(t.Context(), text)
		var ee *ExtractError
		if !errors.As(err, &ee) || ee.Reason != "empty text provided" {
			t.Fatalf("Extract(%q) error = %v, want empty text failure", text, err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("API called %d times for empty input, want 0", n)
	}
}

func TestExtractSuccessAfterRateLimits(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "rate_limit_error"}}`)
			return
		}
		fmt.Fprint(w, completionBody(validPayload))
	})

	result, err := client.Extract(t.Context(), "some contract text")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("API called %d times, want 3", n)
	}
	if result.Parties.PartyOne != "Acme Corp" {
		t.Errorf("PartyOne = %q", result.Parties.PartyOne)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Errorf("Confidence = %f, want within [0,1]", result.Confidence)
	}
}

func TestExtractRetryExhaustion(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "upstream exploded"}}`)
	})

	_, err := client.Extract(t.Context(), "text")
	var ee *ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want ExtractError", err)
	}
	if ee.Reason != "API error after 3 retries" {
		t.Errorf("Reason = %q", ee.Reason)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("API called %d times, want 3", n)
	}
}

func TestExtractAuthFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "bad key", "type": "invalid_request_error"}}`)
	})

	_, err := client.Extract(t.Context(), "text")
	var ee *ExtractError
	if !errors.As(err, &ee) || ee.Reason != "non-retryable API error" {
		t.Fatalf("error = %v, want non-retryable API error", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("API called %d times, want exactly 1", n)
	}
}

func TestExtractCancelledMidRetryNotExhaustion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "upstream exploded"}}`)
	})

	_, err := client.Extract(ctx, "text")
	var ee *ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("error = %v, want ExtractError", err)
	}
	if ee.Reason != "request cancelled" {
		t.Errorf("Reason = %q, want request cancelled", ee.Reason)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("API called %d times after cancellation, want 1", n)
	}
}

func TestExtractResponseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reason  string
	}{
		{"empty body", "", "empty response"},
		{"not json", "sorry, I cannot help with that", "invalid response"},
		{"schema violation", `{"parties": {}, "dates": {}, "clauses": {}, "confidence": 1.7}`, "validation failed"},
		{"missing confidence", `{"parties": {}, "dates": {}, "clauses": {}}`, "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				calls.Add(1)
				fmt.Fprint(w, completionBody(tt.content))
			})

			_, err := client.Extract(t.Context(), "text")
			var ee *ExtractError
			if !errors.As(err, &ee) {
				t.Fatalf("error = %v, want ExtractError", err)
			}
			if ee.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", ee.Reason, tt.reason)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("response errors must not be retried, got %d calls", n)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     string
	}{
		{
			name:     "under limit untouched",
			text:     "short text.",
			maxChars: 100,
			want:     "short text.",
		},
		{
			name:     "sentence boundary in last 20%",
			text:     strings.Repeat("a", 90) + ". tail of truncated sentence continues well past the cut",
			maxChars: 100,
			want:     strings.Repeat("a", 90) + ".",
		},
		{
			name:     "no boundary near cut",
			text:     "First. " + strings.Repeat("b", 200),
			maxChars: 100,
			want:     ("First. " + strings.Repeat("b", 200))[:100],
		},
		{
			// Each é is two bytes; a cut at byte 99 lands between them and
			// must back up to the rune start.
			name:     "multi-byte rune at the cut",
			text:     strings.Repeat("é", 60),
			maxChars: 99,
			want:     strings.Repeat("é", 49),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateText(tt.text, tt.maxChars)
			if got != tt.want {
				t.Errorf("truncateText() = %q, want %q", got, tt.want)
			}
			if len(got) > tt.maxChars {
				t.Errorf("truncated length %d exceeds limit %d", len(got), tt.maxChars)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateText() produced invalid UTF-8: %q", got)
			}
		})
	}
}
