package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shirlab/vilachat/internal"
	"github.com/shirlab/vilachat/testutil"
)

func newDispatcher(backend *testutil.ScriptedBackend) *internal.Dispatcher {
	cfg := internal.DefaultConfig()
	cfg.SystemPrompt = "You describe images."
	return internal.NewDispatcher(internal.NewSession(cfg, backend, nil))
}

func TestDispatcher_Describe(t *testing.T) {
	backend := testutil.NewScriptedBackend(testutil.ScriptedReply{
		Fragments: []string{"a dog in a park"},
	})
	d := newDispatcher(backend)

	res, err := d.Describe(context.Background(), "/data/dog.jpg", "")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if res.ImagePath != "/data/dog.jpg" {
		t.Errorf("ImagePath = %q, want /data/dog.jpg", res.ImagePath)
	}
	if res.AutoPrompt != internal.AutoPrompt {
		t.Errorf("AutoPrompt = %q, want %q", res.AutoPrompt, internal.AutoPrompt)
	}
	if res.ResponseDescribe != "a dog in a park" {
		t.Errorf("ResponseDescribe = %q, want a dog in a park", res.ResponseDescribe)
	}
	if res.ResponseQuestion != nil {
		t.Errorf("ResponseQuestion = %v, want nil without a question", *res.ResponseQuestion)
	}
	if len(backend.Requests) != 1 {
		t.Errorf("backend saw %d requests, want 1", len(backend.Requests))
	}
}

func TestDispatcher_DescribeWithQuestion(t *testing.T) {
	backend := testutil.NewScriptedBackend(
		testutil.ScriptedReply{Fragments: []string{"a dog"}},
		testutil.ScriptedReply{Fragments: []string{"golden retriever"}},
	)
	d := newDispatcher(backend)

	res, err := d.Describe(context.Background(), "/data/dog.jpg", "what breed?")
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if res.ResponseDescribe != "a dog" {
		t.Errorf("ResponseDescribe = %q, want a dog", res.ResponseDescribe)
	}
	if res.ResponseQuestion == nil || *res.ResponseQuestion != "golden retriever" {
		t.Errorf("ResponseQuestion = %v, want golden retriever", res.ResponseQuestion)
	}
	if len(backend.Requests) != 2 {
		t.Fatalf("backend saw %d requests, want 2", len(backend.Requests))
	}
	// The follow-up runs in the same conversation: the question prompt must
	// include the earlier turns.
	if !strings.Contains(backend.Requests[1].Prompt, "a dog") {
		t.Errorf("follow-up prompt %q missing the description turn", backend.Requests[1].Prompt)
	}
}

func TestDispatcher_ResetsBetweenRequests(t *testing.T) {
	backend := testutil.NewScriptedBackend(
		testutil.ScriptedReply{Fragments: []string{"first description"}},
		testutil.ScriptedReply{Fragments: []string{"second description"}},
	)
	d := newDispatcher(backend)
	ctx := context.Background()

	if _, err := d.Describe(ctx, "/data/first.jpg", ""); err != nil {
		t.Fatalf("first Describe() error = %v", err)
	}
	if _, err := d.Describe(ctx, "/data/second.jpg", ""); err != nil {
		t.Fatalf("second Describe() error = %v", err)
	}

	// Nothing from the first request may leak into the second.
	second := backend.Requests[1].Prompt
	if strings.Contains(second, "first.jpg") || strings.Contains(second, "first description") {
		t.Errorf("second request prompt %q carries state from the first request", second)
	}
}

func TestDispatcher_SerializesRequests(t *testing.T) {
	backend := testutil.NewScriptedBackend(
		testutil.ScriptedReply{Fragments: []string{"one"}},
		testutil.ScriptedReply{Fragments: []string{"two"}},
		testutil.ScriptedReply{Fragments: []string{"three"}},
		testutil.ScriptedReply{Fragments: []string{"four"}},
	)
	d := newDispatcher(backend)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Describe(context.Background(), "/data/img.jpg", "")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d error = %v", i, err)
		}
	}
	if len(backend.Requests) != 4 {
		t.Errorf("backend saw %d requests, want 4", len(backend.Requests))
	}
}

func TestDispatcher_BackendErrorSurfaces(t *testing.T) {
	wantErr := errors.New("backend down")
	backend := testutil.NewScriptedBackend(testutil.ScriptedReply{Err: wantErr})
	d := newDispatcher(backend)

	if _, err := d.Describe(context.Background(), "/data/dog.jpg", ""); !errors.Is(err, wantErr) {
		t.Errorf("Describe() error = %v, want %v", err, wantErr)
	}
}

func TestAPIServer_Describe(t *testing.T) {
	backend := testutil.NewScriptedBackend(testutil.ScriptedReply{
		Fragments: []string{"a cat on a sofa"},
	})
	srv := httptest.NewServer(internal.NewAPIServer(newDispatcher(backend)).Handler())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"image_path": "/data/cat.jpg"})
	resp, err := http.Post(srv.URL+"/describe", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /describe error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got struct {
		OK               bool    `json:"ok"`
		ImagePath        string  `json:"image_path"`
		AutoPrompt       string  `json:"auto_prompt"`
		ResponseDescribe string  `json:"response_describe"`
		ResponseQuestion *string `json:"response_question"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if !got.OK {
		t.Error("ok = false")
	}
	if got.ResponseDescribe != "a cat on a sofa" {
		t.Errorf("response_describe = %q, want a cat on a sofa", got.ResponseDescribe)
	}
	if got.ResponseQuestion != nil {
		t.Errorf("response_question = %v, want null", *got.ResponseQuestion)
	}
}

func TestAPIServer_DescribeErrors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"invalid json", http.MethodPost, "{oops", http.StatusBadRequest},
		{"missing image path", http.MethodPost, `{"question":"?"}`, http.StatusBadRequest},
		{"blank image path", http.MethodPost, `{"image_path":"   "}`, http.StatusBadRequest},
	}

	backend := testutil.NewScriptedBackend()
	srv := httptest.NewServer(internal.NewAPIServer(newDispatcher(backend)).Handler())
	defer srv.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+"/describe", strings.NewReader(tt.body))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("error response is not valid JSON: %v", err)
			}
			if ok, _ := body["ok"].(bool); ok {
				t.Error("ok = true in an error response")
			}
		})
	}
}

func TestAPIServer_BackendFailure(t *testing.T) {
	backend := testutil.NewScriptedBackend(testutil.ScriptedReply{
		Err: errors.New("inference sidecar down"),
	})
	srv := httptest.NewServer(internal.NewAPIServer(newDispatcher(backend)).Handler())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"image_path": "/data/cat.jpg"})
	resp, err := http.Post(srv.URL+"/describe", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /describe error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestAPIServer_Health(t *testing.T) {
	backend := testutil.NewScriptedBackend()
	srv := httptest.NewServer(internal.NewAPIServer(newDispatcher(backend)).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if ok, _ := body["ok"].(bool); !ok {
		t.Error("ok = false")
	}
	if _, present := body["time"]; !present {
		t.Error("time field missing")
	}
}
