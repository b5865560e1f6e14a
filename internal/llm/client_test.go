package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/axionhq/axion/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", "test-model", srv.URL)
}

func chatReply(content string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(data)
}

func TestParse_WellFormedResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "please write hello into notes" {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Write([]byte(chatReply(`{"intent": "files.write", "args": {"filename": "notes.txt", "content": "hello"}, "confidence": 0.85}`)))
	})

	got := c.Parse(context.Background(), "please write hello into notes")

	if got.Intent != "files.write" {
		t.Errorf("Intent = %q, want files.write", got.Intent)
	}
	if got.Args["filename"] != "notes.txt" || got.Args["content"] != "hello" {
		t.Errorf("Args = %v", got.Args)
	}
	if got.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", got.Confidence)
	}
	if got.Source != domain.ParseSourceLLM {
		t.Errorf("Source = %q, want llm", got.Source)
	}
}

func TestParse_StripsMarkdownFences(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chatReply("```json\n{\"intent\": \"system.time\", \"args\": {}, \"confidence\": 0.9}\n```")))
	})

	got := c.Parse(context.Background(), "time please")

	if got.Intent != "system.time" {
		t.Errorf("Intent = %q, want system.time", got.Intent)
	}
}

func TestParse_ClampsConfidence(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chatReply(`{"intent": "apps.open", "args": {"app": "x"}, "confidence": 7.5}`)))
	})

	got := c.Parse(context.Background(), "open x")

	if got.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", got.Confidence)
	}
}

func TestParse_DegradesToUnknown(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error": {"message": "boom"}}`))
			},
		},
		{
			name: "malformed content",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(chatReply("I cannot answer that.")))
			},
		},
		{
			name: "empty intent",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(chatReply(`{"intent": "", "args": {}, "confidence": 0.5}`)))
			},
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(`{"choices": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)

			got := c.Parse(context.Background(), "do something")

			if got.Intent != domain.IntentUnknown {
				t.Errorf("Intent = %q, want unknown", got.Intent)
			}
			if got.Args["utterance"] != "do something" {
				t.Errorf("Args = %v", got.Args)
			}
			if got.Confidence != fallbackConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, fallbackConfidence)
			}
			if got.Source != domain.ParseSourceLLM {
				t.Errorf("Source = %q, want llm", got.Source)
			}
		})
	}
}

func TestParse_UnreachableServer(t *testing.T) {
	c := NewClient("key", "", "http://127.0.0.1:1")

	got := c.Parse(context.Background(), "anything")

	if got.Intent != domain.IntentUnknown {
		t.Errorf("Intent = %q, want unknown", got.Intent)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("key", "", "")

	if c.model != defaultModel {
		t.Errorf("model = %q, want %q", c.model, defaultModel)
	}
	if c.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, defaultBaseURL)
	}
}
