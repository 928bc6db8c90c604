package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func completionBody(content string) string {
	resp := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []map[string]interface{}{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	return New(Config{
		APIKey:       "test-key",
		BaseURL:      url,
		Model:        "gpt-4o-mini",
		Timeout:      5 * time.Second,
		RetryBackoff: time.Millisecond,
	}, nil)
}

func TestCompleteSuccess(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		io.WriteString(w, completionBody("a fine docstring"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	out, err := c.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "a fine docstring" {
		t.Errorf("content = %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
	if gotBody.ResponseFormat != nil {
		t.Error("plain Complete should not send response_format")
	}
}

func TestCompleteJSONSendsSchema(t *testing.T) {
	t.Parallel()

	var gotBody Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		io.WriteString(w, completionBody(`{"answer": 42}`))
	}))
	defer srv.Close()

	format := &ResponseFormat{
		Type: "json_schema",
		JSONSchema: &JSONSchema{
			Name:   "answer",
			Strict: true,
			Schema: map[string]interface{}{"type": "object"},
		},
	}

	c := testClient(t, srv.URL)
	out, err := c.CompleteJSON(context.Background(), "sys", "user", format)
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if out != `{"answer": 42}` {
		t.Errorf("content = %q", out)
	}
	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response_format = %+v", gotBody.ResponseFormat)
	}
	if gotBody.ResponseFormat.JSONSchema.Name != "answer" {
		t.Errorf("schema name = %q", gotBody.ResponseFormat.JSONSchema.Name)
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, completionBody("second try"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	out, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "second try" {
		t.Errorf("content = %q", out)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestCompleteRetriesServerError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, completionBody("recovered"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	out, err := c.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "recovered" {
		t.Errorf("content = %q", out)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Errorf("calls = %d, want 4 (initial + 3 retries)", n)
	}
}

func TestCompleteFailsFastOnBadRequest(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad schema"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Errorf("error = %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 400)", n)
	}
}

func TestCompleteAPIErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error": {"message": "model overloaded", "type": "server_error"}}`)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("error = %v", err)
	}
}

func TestCompleteMissingKey(t *testing.T) {
	t.Parallel()

	c := New(Config{}, nil)
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("error = %v", err)
	}
}
