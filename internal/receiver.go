package internal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Receiver is the ingest endpoint a relay forwards to. It persists the
// document JSON and the optional image attachment side by side under one
// directory, which is what the viewer scans.
type Receiver struct {
	Dir string
}

// NewReceiver creates a receiver saving into dir, creating it if needed.
func NewReceiver(dir string) (*Receiver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ingest directory: %w", err)
	}
	return &Receiver{Dir: dir}, nil
}

// Handler returns the route table.
func (rc *Receiver) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ingest", rc.handleIngest)
	mux.HandleFunc("/health", handleHealth)
	return mux
}

// savedPaths reports where the pieces of one ingested document landed.
type savedPaths struct {
	JSON       string `json:"json"`
	Image      string `json:"image,omitempty"`
	ImageError string `json:"image_error,omitempty"`
}

func (rc *Receiver) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"ok": false, "error": "POST only"})
		return
	}

	var doc map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "invalid JSON"})
		return
	}

	// Pull the transient attachment fields out of the document; only the
	// document itself is persisted as JSON.
	imageB64, _ := doc["_image_b64"].(string)
	imageBase, _ := doc["_image_basename"].(string)
	imageExt, _ := doc["_image_ext"].(string)
	delete(doc, "_image_b64")
	delete(doc, "_image_basename")
	delete(doc, "_image_ext")

	if imageBase == "" {
		imagePath, _ := doc["image_path"].(string)
		imageBase = SafeBasename(imagePath, time.Now())
	}
	if imageExt == "" {
		imageExt = ".jpg"
	}

	jsonPath := filepath.Join(rc.Dir, imageBase+".json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "unencodable document"})
		return
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": err.Error()})
		return
	}

	absJSON, err := filepath.Abs(jsonPath)
	if err != nil {
		absJSON = jsonPath
	}
	saved := savedPaths{JSON: absJSON}

	if strings.TrimSpace(imageB64) != "" {
		raw, err := base64.StdEncoding.DecodeString(imageB64)
		if err != nil {
			saved.ImageError = fmt.Sprintf("failed to decode image: %v", err)
		} else {
			ext := strings.ToLower(imageExt)
			if ext == ".jpeg" {
				ext = ".jpg"
			}
			imagePath := filepath.Join(rc.Dir, imageBase+ext)
			if err := os.WriteFile(imagePath, raw, 0644); err != nil {
				saved.ImageError = fmt.Sprintf("failed to write image: %v", err)
			} else if abs, err := filepath.Abs(imagePath); err == nil {
				saved.Image = abs
			} else {
				saved.Image = imagePath
			}
		}
	}

	LogInfo("[ingest] saved: %s", saved.JSON)
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "saved": saved})
}
