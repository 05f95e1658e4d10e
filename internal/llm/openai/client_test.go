package openai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"labmatch/internal/config"
	"labmatch/internal/errs"
	"labmatch/internal/llm"
)

func testClient(srvURL string) *Client {
	return New(config.Config{
		OpenAIBaseURL:  srvURL + "/v1",
		OpenAIAPIKey:   "test-key",
		ChatModel:      "chat-model",
		EmbeddingModel: "embed-model",
	}, 0)
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	out, err := c.Chat(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello there" {
		t.Fatalf("content: %q", out)
	}
}

func TestChatWithoutKey(t *testing.T) {
	c := New(config.Config{}, 0)
	_, err := c.Chat(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0)
	if !errors.Is(err, errs.ErrExternalService) {
		t.Fatalf("want external service error, got %v", err)
	}
}

func TestEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]},{"embedding":[0.3,0.4]}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	vecs, err := c.Embeddings(context.Background(), "", []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("vectors: %v", vecs)
	}
}

func TestEmbeddingsRejectsEmptyInput(t *testing.T) {
	c := testClient("http://unused")
	if _, err := c.Embeddings(context.Background(), "", nil); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("nil inputs: %v", err)
	}
	if _, err := c.Embeddings(context.Background(), "", []string{"ok", "  "}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("blank input: %v", err)
	}
}

func TestEmbeddingsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[0.1]}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.Embeddings(context.Background(), "", []string{"one", "two"}); !errors.Is(err, errs.ErrExternalService) {
		t.Fatalf("count mismatch: %v", err)
	}
}
