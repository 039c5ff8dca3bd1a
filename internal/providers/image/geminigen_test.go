package image

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"server/internal/domain"
)

func newGeminiGenTest(t *testing.T, handler http.HandlerFunc) *GeminiGen {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiGen(GeminiGenOptions{
		BaseURL:     srv.URL,
		Credentials: StaticCredentials{"GEMINIGEN_API_KEY": "test-key"},
	})
}

func TestGeminiGenSubmitSynchronousCompletion(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/generate_image" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Fatalf("x-api-key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "nano-banana-pro" {
			t.Fatalf("model = %q", got)
		}
		if r.FormValue("prompt") == "" {
			t.Fatal("prompt missing")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uuid":            "task-1",
			"status":          2,
			"generate_result": "https://cdn.example.com/img_600px.png",
		})
	})

	res, err := adapter.Submit(context.Background(), "a prompt", SourceImage{Data: []byte("img"), Filename: "p.jpg"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.ExternalTaskID != "task-1" {
		t.Fatalf("ExternalTaskID = %q", res.ExternalTaskID)
	}
	if res.Outcome.State != domain.OutcomeCompleted {
		t.Fatalf("outcome state = %v", res.Outcome.State)
	}
	if res.Outcome.ResultURL != "https://cdn.example.com/img.png" {
		t.Fatalf("thumbnail suffix not stripped: %q", res.Outcome.ResultURL)
	}
}

func TestGeminiGenSubmitProcessing(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"uuid": "task-2", "status": 1})
	})

	res, err := adapter.Submit(context.Background(), "p", SourceImage{Data: []byte("img"), Filename: "p.jpg"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Outcome.Terminal() {
		t.Fatalf("expected processing outcome, got %+v", res.Outcome)
	}
}

func TestGeminiGenSubmitCompletedWithoutResultFails(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"uuid": "task-3", "status": 2})
	})

	res, err := adapter.Submit(context.Background(), "p", SourceImage{Data: []byte("img"), Filename: "p.jpg"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.Outcome.State != domain.OutcomeFailed {
		t.Fatalf("outcome state = %v, want failed", res.Outcome.State)
	}
}

func TestGeminiGenSubmitAPIError(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	})

	_, err := adapter.Submit(context.Background(), "p", SourceImage{Data: []byte("img"), Filename: "p.jpg"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Fatalf("error should carry the status code: %v", err)
	}
}

func TestGeminiGenSubmitMissingKey(t *testing.T) {
	adapter := NewGeminiGen(GeminiGenOptions{Credentials: StaticCredentials{}})
	_, err := adapter.Submit(context.Background(), "p", SourceImage{Data: []byte("img")})
	if err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestGeminiGenPollScansHistories(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/histories" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []any{
				map[string]any{"uuid": "other", "status": 2, "generate_result": "https://cdn.example.com/other.png"},
				map[string]any{"uuid": "task-9", "status": 2, "generate_result": "https://cdn.example.com/nine_600px.png"},
			},
		})
	})

	outcome, err := adapter.Poll(context.Background(), "task-9")
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if outcome.State != domain.OutcomeCompleted || outcome.ResultURL != "https://cdn.example.com/nine.png" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestGeminiGenPollTaskAbsentMeansProcessing(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
	})

	outcome, err := adapter.Poll(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if outcome.Terminal() {
		t.Fatalf("expected processing, got %+v", outcome)
	}
}

func TestGeminiGenPollFailedTask(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": []any{
				map[string]any{"uuid": "task-f", "status": 3, "error_message": "content rejected"},
			},
		})
	})

	outcome, err := adapter.Poll(context.Background(), "task-f")
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if outcome.State != domain.OutcomeFailed || outcome.ErrorDetail != "content rejected" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestGeminiGenNumericIDsAreStringified(t *testing.T) {
	adapter := newGeminiGenTest(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 12345, "status": 1})
	})

	res, err := adapter.Submit(context.Background(), "p", SourceImage{Data: []byte("img"), Filename: "p.jpg"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if res.ExternalTaskID != "12345" {
		t.Fatalf("ExternalTaskID = %q", res.ExternalTaskID)
	}
}
