package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shirlab/vilachat/internal"
)

// JSONExporter exports ledger documents as indented JSON
type JSONExporter struct{}

// Export writes the document as pretty-printed JSON
func (e *JSONExporter) Export(doc *internal.LedgerDocument, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
