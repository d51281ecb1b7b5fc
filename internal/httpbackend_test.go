package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sidecarRequest(t *testing.T, r *http.Request) generateBody {
	t.Helper()
	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("sidecar received invalid JSON: %v", err)
	}
	return body
}

func TestHTTPBackend_Blocking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := sidecarRequest(t, r)
		if body.Stream {
			t.Error("stream = true, want blocking request")
		}
		if body.Prompt != "USER: hi\n" {
			t.Errorf("prompt = %q, want the rendered window", body.Prompt)
		}
		json.NewEncoder(w).Encode(generateChunk{
			Text:     "hello there",
			Done:     true,
			CacheID:  "c1",
			Position: 7,
		})
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	completion, stream, err := b.Generate(context.Background(), &GenerateRequest{
		Prompt:    "USER: hi\n",
		Streaming: false,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if stream != nil {
		t.Error("blocking call returned a stream")
	}
	if completion.Text != "hello there" {
		t.Errorf("Text = %q, want hello there", completion.Text)
	}
	if completion.CacheHandle != "c1" || completion.CachePosition != 7 {
		t.Errorf("cache = %v, %d, want c1, 7", completion.CacheHandle, completion.CachePosition)
	}
}

func TestHTTPBackend_Streaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := sidecarRequest(t, r)
		if !body.Stream {
			t.Error("stream = false, want streaming request")
		}
		if body.CacheID != "warm-1" || body.CachePosition != 33 {
			t.Errorf("cache = %q, %d, want warm-1, 33", body.CacheID, body.CachePosition)
		}
		fmt.Fprintln(w, `{"text":"a ","done":false}`)
		fmt.Fprintln(w, `{"text":"cat","done":false}`)
		fmt.Fprintln(w, `{"text":"","done":true,"cache_id":"c2","position":40}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	_, stream, err := b.Generate(context.Background(), &GenerateRequest{
		Prompt:        "USER: hi\n",
		CacheHandle:   "warm-1",
		CachePosition: 33,
		Streaming:     true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	var text string
	for {
		fragment, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		text += fragment
	}
	if text != "a cat" {
		t.Errorf("streamed text = %q, want a cat", text)
	}
	handle, pos := stream.Cache()
	if handle != "c2" || pos != 40 {
		t.Errorf("Cache() = %v, %d, want c2, 40", handle, pos)
	}
}

func TestHTTPBackend_StreamingFinalTextFragment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"text":"tail","done":true,"cache_id":"c3","position":5}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	_, stream, err := b.Generate(context.Background(), &GenerateRequest{Streaming: true})
	if err != nil {
		t.Fatal(err)
	}

	fragment, err := stream.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if fragment != "tail" {
		t.Errorf("fragment = %q, want the text carried on the done chunk", fragment)
	}
	if _, err := stream.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next() after done error = %v, want EOF", err)
	}
}

func TestHTTPBackend_StreamingErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"text":"ok ","done":false}`)
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	_, stream, err := b.Generate(context.Background(), &GenerateRequest{Streaming: true})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	_, err = stream.Next()
	var berr *BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if berr.Mode != "streaming" {
		t.Errorf("Mode = %q, want streaming", berr.Mode)
	}
}

func TestHTTPBackend_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	_, _, err := b.Generate(context.Background(), &GenerateRequest{Streaming: false})
	var berr *BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	b := NewHTTPBackend("http://127.0.0.1:1", "vila", "mlc", 4096)
	_, _, err := b.Generate(context.Background(), &GenerateRequest{Streaming: true})
	var berr *BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("error type = %T, want *BackendError", err)
	}
	if berr.Mode != "streaming" {
		t.Errorf("Mode = %q, want streaming", berr.Mode)
	}
}

func TestHTTPBackend_StatsRecorded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateChunk{Text: "x", Done: true})
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "vila", "mlc", 4096)
	if _, _, err := b.Generate(context.Background(), &GenerateRequest{Streaming: false}); err != nil {
		t.Fatal(err)
	}
	stats := b.Stats()
	if _, ok := stats["last_call_s"]; !ok {
		t.Errorf("stats missing last_call_s: %v", stats)
	}
}

func TestHTTPBackend_Identity(t *testing.T) {
	b := NewHTTPBackend("http://host", "vila-3b", "mlc", 2048)
	if b.Model() != "vila-3b" || b.API() != "mlc" || b.MaxContextLength() != 2048 {
		t.Errorf("identity = %q, %q, %d", b.Model(), b.API(), b.MaxContextLength())
	}
}
