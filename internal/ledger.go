package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// LedgerEntry is one prompt/response interaction recorded in a per-image
// ledger document.
type LedgerEntry struct {
	Timestamp int64    `json:"timestamp"`
	Prompt    string   `json:"prompt"`
	Response  string   `json:"response"`
	OwlRaw    string   `json:"owl_raw,omitempty"`
	OwlList   []string `json:"owl_list,omitempty"`
}

// LedgerDocument is the durable JSON record for one image. Entries are
// append-only; the document is rewritten wholesale on each append.
type LedgerDocument struct {
	ImagePath string        `json:"image_path"`
	Model     string        `json:"model"`
	API       string        `json:"api"`
	Entries   []LedgerEntry `json:"entries"`
}

// DeriveKey maps an image path or URL to its ledger file path. For a URL
// the key is the URL path's basename with the extension replaced by .json,
// resolved relative to the working directory. For a local path the key sits
// next to the source file. Pure and idempotent.
func DeriveKey(pathOrURL string) string {
	p := CleanPath(pathOrURL)
	if isURL(p) {
		base := ImageBasename(p)
		return base + ".json"
	}
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + ".json"
}

// ReadLedgerDocument loads and validates a ledger document from disk.
func ReadLedgerDocument(path string) (*LedgerDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LedgerError{Path: path, Op: "read", Err: err}
	}
	var doc LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LedgerError{Path: path, Op: "read", Err: err}
	}
	return &doc, nil
}

// Ledger appends interaction records to per-image JSON documents.
type Ledger struct {
	Model  string // model identifier stamped into fresh documents
	API    string
	Indent int // JSON indent width, 0 minifies
}

// load reads the existing document at path. A missing, unreadable or
// wrong-shape file yields nil; the caller synthesizes a fresh shell and the
// prior content is discarded, not merged.
func (l *Ledger) load(path string) *LedgerDocument {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc LedgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		LogWarn("ledger %s is not a valid document, replacing", path)
		return nil
	}
	if doc.ImagePath == "" && doc.Entries == nil {
		// Parsed but carries none of the expected shape.
		LogWarn("ledger %s has unexpected shape, replacing", path)
		return nil
	}
	return &doc
}

// AppendEntry appends entry to the document keyed by path, creating or
// replacing the document shell as needed, and rewrites the file atomically
// (temp file + rename) so readers never observe a half-written ledger.
// Returns the full document for forwarding.
func (l *Ledger) AppendEntry(path, imagePath string, entry LedgerEntry) (*LedgerDocument, error) {
	doc := l.load(path)
	if doc == nil {
		doc = &LedgerDocument{
			ImagePath: CleanPath(imagePath),
			Model:     l.Model,
			API:       l.API,
			Entries:   []LedgerEntry{},
		}
	}
	doc.Entries = append(doc.Entries, entry)

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &LedgerError{Path: path, Op: "mkdir", Err: err}
		}
	}

	var data []byte
	var err error
	if l.Indent > 0 {
		data, err = json.MarshalIndent(doc, "", strings.Repeat(" ", l.Indent))
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, &LedgerError{Path: path, Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return nil, &LedgerError{Path: path, Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, &LedgerError{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, &LedgerError{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return nil, &LedgerError{Path: path, Op: "rename", Err: err}
	}

	LogInfo("[saved] %s", path)
	return doc, nil
}
