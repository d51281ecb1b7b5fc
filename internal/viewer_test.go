package internal

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewViewer_MissingRoot(t *testing.T) {
	if _, err := NewViewer(filepath.Join(t.TempDir(), "absent"), 2.0); err == nil {
		t.Error("NewViewer() error = nil, want failure on missing root")
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "first entry response wins",
			doc:  `{"entries":[{"response":"a cat"},{"response":"later"}],"description":"ignored"}`,
			want: "a cat",
		},
		{
			name: "stop token stripped",
			doc:  `{"entries":[{"response":"a cat</s>"}]}`,
			want: "a cat",
		},
		{
			name: "response_describe fallback",
			doc:  `{"response_describe":"a dog"}`,
			want: "a dog",
		},
		{
			name: "description fallback",
			doc:  `{"description":"a bird"}`,
			want: "a bird",
		},
		{
			name: "caption fallback",
			doc:  `{"caption":"a fish"}`,
			want: "a fish",
		},
		{
			name: "empty entry falls through",
			doc:  `{"entries":[{"response":"  "}],"description":"a horse"}`,
			want: "a horse",
		},
		{
			name: "nothing usable",
			doc:  `{"model":"vila"}`,
			want: "(no textual description found in JSON)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(tt.doc), &doc); err != nil {
				t.Fatal(err)
			}
			if got := ExtractText(doc); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func writeViewerFixture(t *testing.T, dir, base, text string, mtime time.Time) {
	t.Helper()
	img := filepath.Join(dir, base+".jpg")
	if err := os.WriteFile(img, []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}
	doc := map[string]interface{}{
		"entries": []map[string]interface{}{{"response": text}},
	}
	data, _ := json.Marshal(doc)
	meta := filepath.Join(dir, base+".json")
	if err := os.WriteFile(meta, data, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(img, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(meta, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestViewer_CollectItems(t *testing.T) {
	dir := t.TempDir()
	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	writeViewerFixture(t, dir, "old", "older scene", older)
	writeViewerFixture(t, dir, "new", "newer scene", newer)
	// An image without a sibling document still lists.
	if err := os.WriteFile(filepath.Join(dir, "lonely.png"), []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}
	// Non-image files are skipped.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	v, err := NewViewer(dir, 2.0)
	if err != nil {
		t.Fatalf("NewViewer() error = %v", err)
	}
	items, err := v.collectItems()
	if err != nil {
		t.Fatalf("collectItems() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	// Newest first.
	if items[0].Basename != "new" {
		t.Errorf("first item = %q, want new", items[0].Basename)
	}
	if items[0].Text != "newer scene" {
		t.Errorf("first text = %q, want newer scene", items[0].Text)
	}
	for _, it := range items {
		if it.Basename == "lonely" {
			if it.JSON != nil {
				t.Error("lonely image reported a JSON link")
			}
			if it.Text != "" {
				t.Errorf("lonely text = %q, want empty", it.Text)
			}
		}
	}
}

func TestViewer_APIItems(t *testing.T) {
	dir := t.TempDir()
	writeViewerFixture(t, dir, "scene", "a busy street", time.Now())

	v, err := NewViewer(dir, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/items")
	if err != nil {
		t.Fatalf("GET /api/items error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		OK    bool       `json:"ok"`
		Count int        `json:"count"`
		Items []ViewItem `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if !body.OK || body.Count != 1 {
		t.Fatalf("ok, count = %v, %d, want true, 1", body.OK, body.Count)
	}
	it := body.Items[0]
	if it.Image != "/img/scene.jpg" {
		t.Errorf("image link = %q, want /img/scene.jpg", it.Image)
	}
	if it.JSON == nil || *it.JSON != "/meta/scene.json" {
		t.Errorf("json link = %v, want /meta/scene.json", it.JSON)
	}
}

func TestViewer_ServesFiles(t *testing.T) {
	dir := t.TempDir()
	writeViewerFixture(t, dir, "scene", "a street", time.Now())

	v, err := NewViewer(dir, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/img/scene.jpg")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /img/scene.jpg status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/meta/scene.json")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /meta/scene.json status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestViewer_HandleFileRefusesEscape(t *testing.T) {
	dir := t.TempDir()

	v, err := NewViewer(dir, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	handler := v.handleFile("/img/", "")

	tests := []struct {
		name string
		path string
		want int
	}{
		{"parent traversal", "/img/../secret.txt", http.StatusForbidden},
		{"deep traversal", "/img/a/../../secret.txt", http.StatusForbidden},
		{"missing file", "/img/absent.jpg", http.StatusNotFound},
		{"root itself", "/img/", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://viewer"+tt.path, nil)
			// Bypass the mux so its path cleaning does not mask the guard.
			req.URL.Path = tt.path
			w := httptest.NewRecorder()
			handler(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestViewer_IndexPage(t *testing.T) {
	dir := t.TempDir()
	v, err := NewViewer(dir, 3.5)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(v.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	if !strings.Contains(html, "SCAN_INTERVAL = 3.5") {
		t.Error("index page missing the configured scan interval")
	}
	if !strings.Contains(html, "/api/items") {
		t.Error("index page does not poll the items API")
	}
}
