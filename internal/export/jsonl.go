package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shirlab/vilachat/internal"
)

// JSONLExporter exports ledger documents as JSONL (one entry per line)
type JSONLExporter struct{}

// Export writes one JSON object per ledger entry
func (e *JSONLExporter) Export(doc *internal.LedgerDocument, w io.Writer) error {
	enc := json.NewEncoder(w)

	for _, entry := range doc.Entries {
		obj := map[string]interface{}{
			"image_path": doc.ImagePath,
			"timestamp":  entry.Timestamp,
			"prompt":     entry.Prompt,
			"response":   entry.Response,
		}
		if entry.OwlRaw != "" {
			obj["owl_raw"] = entry.OwlRaw
		}
		if len(entry.OwlList) > 0 {
			obj["owl_list"] = entry.OwlList
		}

		if err := enc.Encode(obj); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}
