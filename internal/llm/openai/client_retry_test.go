package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"labmatch/internal/config"
	"labmatch/internal/llm"
)

func TestChatRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok after retry"}}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	out, err := c.Chat(context.Background(), "", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok after retry" {
		t.Fatalf("content: %q", out)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls: %d", got)
	}
}

func TestMinIntervalBetweenRequests(t *testing.T) {
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stamps = append(stamps, time.Now())
		w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	c := New(config.Config{
		OpenAIBaseURL: srv.URL + "/v1",
		OpenAIAPIKey:  "test-key",
	}, 50*time.Millisecond)
	for i := 0; i < 2; i++ {
		if _, err := c.Chat(context.Background(), "m", []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, 0); err != nil {
			t.Fatal(err)
		}
	}
	if len(stamps) != 2 {
		t.Fatalf("requests: %d", len(stamps))
	}
	if gap := stamps[1].Sub(stamps[0]); gap < 40*time.Millisecond {
		t.Fatalf("gap too small: %v", gap)
	}
}
