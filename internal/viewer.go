package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Viewer serves a read-only web UI over an ingested directory: every image
// plus the description extracted from its sibling JSON document.
type Viewer struct {
	Root         string
	ScanInterval float64
}

// NewViewer creates a viewer over root. A missing or non-directory root is
// a startup failure.
func NewViewer(root string, scanInterval float64) (*Viewer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("root dir not found: %s", abs)
	}
	return &Viewer{Root: abs, ScanInterval: scanInterval}, nil
}

// ViewItem is one image/description pair in the listing.
type ViewItem struct {
	Basename string  `json:"basename"`
	Image    string  `json:"image"`
	JSON     *string `json:"json"`
	Mtime    float64 `json:"mtime"`
	Text     string  `json:"text"`
}

// ExtractText pulls a human-readable description out of a flexible JSON
// document. Priority: first entry's response, else a top-level
// response_describe, else the first of the common fallback keys.
func ExtractText(doc map[string]interface{}) string {
	clean := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(s), "</s>", ""))
	}

	if entries, ok := doc["entries"].([]interface{}); ok && len(entries) > 0 {
		if first, ok := entries[0].(map[string]interface{}); ok {
			if v, ok := first["response"].(string); ok && strings.TrimSpace(v) != "" {
				return clean(v)
			}
		}
	}

	if v, ok := doc["response_describe"].(string); ok && strings.TrimSpace(v) != "" {
		return clean(v)
	}

	for _, key := range []string{"description", "caption", "summary", "output", "response"} {
		if v, ok := doc[key].(string); ok && strings.TrimSpace(v) != "" {
			return clean(v)
		}
	}

	return "(no textual description found in JSON)"
}

// collectItems scans the root for images, pairs each with the JSON file of
// the same basename, and returns them newest first.
func (v *Viewer) collectItems() ([]ViewItem, error) {
	var items []ViewItem

	err := filepath.Walk(v.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(v.Root, path)
		if err != nil {
			return nil
		}

		item := ViewItem{
			Basename: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Image:    "/img/" + filepath.ToSlash(rel),
			Mtime:    float64(info.ModTime().Unix()),
		}

		jsonPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
		if jsonInfo, err := os.Stat(jsonPath); err == nil {
			jsonRel, err := filepath.Rel(v.Root, jsonPath)
			if err == nil {
				meta := "/meta/" + filepath.ToSlash(jsonRel)
				item.JSON = &meta
			}
			if jsonInfo.ModTime().After(info.ModTime()) {
				item.Mtime = float64(jsonInfo.ModTime().Unix())
			}

			data, err := os.ReadFile(jsonPath)
			if err != nil {
				item.Text = "(failed to read/parse JSON)"
			} else {
				var doc map[string]interface{}
				if err := json.Unmarshal(data, &doc); err != nil {
					item.Text = "(failed to read/parse JSON)"
				} else {
					item.Text = ExtractText(doc)
				}
			}
		}

		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Mtime > items[j].Mtime })
	return items, nil
}

// Handler returns the route table.
func (v *Viewer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", v.handleIndex)
	mux.HandleFunc("/api/items", v.handleItems)
	mux.HandleFunc("/img/", v.handleFile("/img/", ""))
	mux.HandleFunc("/meta/", v.handleFile("/meta/", "application/json"))
	return mux
}

func (v *Viewer) handleItems(w http.ResponseWriter, r *http.Request) {
	items, err := v.collectItems()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}
	if items == nil {
		items = []ViewItem{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"count": len(items),
		"items": items,
	})
}

// handleFile serves a file under the root, refusing paths that escape it.
func (v *Viewer) handleFile(prefix, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, prefix)
		full, err := filepath.Abs(filepath.Join(v.Root, filepath.FromSlash(rel)))
		if err != nil || !strings.HasPrefix(full, v.Root+string(filepath.Separator)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		http.ServeFile(w, r, full)
	}
}

func (v *Viewer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexHTML, v.ScanInterval)
}

// indexHTML is the inline viewer page. %.1f receives the auto-refresh
// interval in seconds.
const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>VLM Ingest Viewer</title>
  <style>
    :root { --bg:#0f172a; --card:#111827; --ink:#e2e8f0; --muted:#9ca3af; }
    html,body { margin:0; background:var(--bg); color:var(--ink); font-family: ui-sans-serif, system-ui, sans-serif; }
    header { display:flex; gap:12px; align-items:center; padding:14px 18px; border-bottom:1px solid #1f2937; }
    h1 { margin:0; font-size:18px; }
    .badge { background:#0ea5b7; color:#002227; padding:2px 8px; border-radius:999px; font-weight:700; font-size:12px; }
    .grid { display:grid; grid-template-columns: repeat(auto-fill, minmax(260px, 1fr)); gap:14px; padding:18px; }
    .card { background:var(--card); border:1px solid #1f2937; border-radius:16px; overflow:hidden; }
    .thumb { width:100%%; height:180px; object-fit:cover; display:block; background:#0b1220; }
    .body { padding:12px 14px; display:flex; flex-direction:column; gap:8px; }
    .basename { font-size:13px; color:var(--muted); overflow:hidden; text-overflow:ellipsis; white-space:nowrap; }
    .mtime { font-size:12px; color:#7dd3fc; }
    .text { font-size:14px; line-height:1.35; max-height:72px; overflow:hidden; }
    .btn { border:1px solid #1f2937; background:#0b1325; color:#e2e8f0; padding:6px 10px; border-radius:12px; font-size:13px; text-decoration:none; }
  </style>
</head>
<body>
  <header>
    <h1>VLM Ingest Viewer</h1>
    <span class="badge" id="count">0</span>
  </header>
  <main class="grid" id="grid"></main>
  <script>
    const SCAN_INTERVAL = %.1f;

    function fmtTime(ts){
      try { return new Date(ts*1000).toLocaleString(); } catch(e){ return String(ts); }
    }

    function render(items){
      document.getElementById('count').textContent = items.length;
      document.getElementById('grid').innerHTML = items.map(it => ` + "`" + `
        <div class="card">
          <img class="thumb" src="${it.image}" alt="${it.basename}" />
          <div class="body">
            <div class="basename" title="${it.basename}">${it.basename}</div>
            <div class="mtime">${fmtTime(it.mtime)}</div>
            <div class="text">${(it.text||'').replace(/[\n\r]+/g,' ')}</div>
            <div>
              ${it.json ? ` + "`" + `<a class="btn" href="${it.json}" target="_blank">JSON</a>` + "`" + ` : ''}
              <a class="btn" href="${it.image}" target="_blank">Image</a>
            </div>
          </div>
        </div>` + "`" + `).join('');
    }

    async function load(){
      try {
        const r = await fetch('/api/items');
        const js = await r.json();
        if (js && js.ok) render(js.items);
      } catch(e) { console.error(e); }
    }

    load();
    setInterval(load, SCAN_INTERVAL*1000);
  </script>
</body>
</html>`
