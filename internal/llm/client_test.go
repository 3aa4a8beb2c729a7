package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionResponse(text string) string {
	resp := chatResponse{}
	resp.Choices = append(resp.Choices, struct {
		Message chatMessage `json:"message"`
	}{Message: chatMessage{Role: "assistant", Content: text}})
	data, _ := json.Marshal(resp)
	return string(data)
}

func newServerClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		Endpoint:   srv.URL,
		Model:      "test-model",
		MaxRetries: 2,
		Timeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, srv
}

func TestRefineSuccess(t *testing.T) {
	var gotRequest chatRequest
	client, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("Cleaned up text.")))
	})

	refined, err := client.Refine(context.Background(), "cleaned up text")
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if refined != "Cleaned up text." {
		t.Errorf("unexpected refined text %q", refined)
	}

	if gotRequest.Model != "test-model" {
		t.Errorf("expected model in request, got %q", gotRequest.Model)
	}
	if len(gotRequest.Messages) != 2 || gotRequest.Messages[1].Content != "cleaned up text" {
		t.Errorf("unexpected messages %+v", gotRequest.Messages)
	}
	if gotRequest.Messages[0].Role != "system" || !strings.Contains(gotRequest.Messages[0].Content, "Clean up") {
		t.Errorf("expected default system prompt, got %+v", gotRequest.Messages[0])
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 || stats.TotalRetries != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRefineEmptyInputPassesThrough(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://example.invalid", Model: "m"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	refined, err := client.Refine(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if refined != "   " {
		t.Errorf("expected blank input returned unchanged, got %q", refined)
	}
	if client.GetStats().TotalRequests != 0 {
		t.Error("blank input must not hit the API")
	}
}

func TestRefineRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	client, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completionResponse("second try")))
	})

	refined, err := client.Refine(context.Background(), "text")
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	if refined != "second try" {
		t.Errorf("unexpected refined text %q", refined)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	if client.GetStats().TotalRetries != 1 {
		t.Errorf("expected 1 retry recorded, got %d", client.GetStats().TotalRetries)
	}
}

func TestRefineDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int64
	client, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	if _, err := client.Refine(context.Background(), "text"); err == nil {
		t.Fatal("expected error for rejected request")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("client errors must not be retried, got %d attempts", got)
	}
	if client.GetStats().FailedRequests != 1 {
		t.Errorf("expected 1 failed request, got %d", client.GetStats().FailedRequests)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport failure", &requestError{statusCode: 0, err: context.DeadlineExceeded}, true},
		{"server error", &requestError{statusCode: 500, err: context.Canceled}, true},
		{"rate limited", &requestError{statusCode: 429, err: context.Canceled}, true},
		{"bad request", &requestError{statusCode: 400, err: context.Canceled}, false},
		{"unauthorized", &requestError{statusCode: 401, err: context.Canceled}, false},
		{"plain error", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Model: "m"}); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewClient(Config{Endpoint: "http://x"}); err == nil {
		t.Error("expected error for missing model")
	}
}
