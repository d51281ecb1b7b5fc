package internal

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ForwardRecord is the transient outbound shape of a ledger document: the
// document fields plus an optional base64 image attachment. It exists only
// for the duration of one POST and is never persisted locally.
type ForwardRecord struct {
	ImagePath string        `json:"image_path"`
	Model     string        `json:"model"`
	API       string        `json:"api"`
	Entries   []LedgerEntry `json:"entries"`

	ImageBasename string `json:"_image_basename,omitempty"`
	ImageExt      string `json:"_image_ext,omitempty"`
	ImageB64      string `json:"_image_b64,omitempty"`
}

// Relay delivers ledger documents to a remote collector, best effort. A
// failed delivery is logged as a warning and never affects the local ledger
// write, which has already completed.
type Relay struct {
	URL         string
	AttachImage bool
	Client      *http.Client
}

// NewRelay creates a relay for the given ingest URL. An empty URL disables
// forwarding.
func NewRelay(url string, attachImage bool) *Relay {
	return &Relay{
		URL:         url,
		AttachImage: attachImage,
		Client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a forward URL is configured.
func (r *Relay) Enabled() bool {
	return r != nil && r.URL != ""
}

// Forward POSTs the document to the collector, optionally attaching the
// image bytes read from imagePath. Success is any 2xx status. The returned
// error is informational; callers must not retry or roll back on it.
func (r *Relay) Forward(doc *LedgerDocument, imagePath string) error {
	if !r.Enabled() {
		return nil
	}

	record := ForwardRecord{
		ImagePath: doc.ImagePath,
		Model:     doc.Model,
		API:       doc.API,
		Entries:   doc.Entries,
	}

	if r.AttachImage {
		// Oversized or unreadable images are simply omitted.
		data, basename, ext := ReadImageBytes(imagePath)
		if len(data) > 0 {
			record.ImageBasename = basename
			record.ImageExt = ext
			record.ImageB64 = base64.StdEncoding.EncodeToString(data)
		}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		LogWarn("[forward] failed to encode document: %v", err)
		return &ForwardError{URL: r.URL, Status: -1, Err: err}
	}

	resp, err := r.Client.Post(r.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		LogWarn("[forward] failed to POST to %s: %v", r.URL, err)
		return &ForwardError{URL: r.URL, Status: -1, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		LogWarn("[forward] POST to %s returned status %d: %s", r.URL, resp.StatusCode, string(body))
		return &ForwardError{URL: r.URL, Status: resp.StatusCode}
	}

	LogInfo("[forward] posted document to %s (status %d)", r.URL, resp.StatusCode)
	return nil
}
