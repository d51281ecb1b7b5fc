package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shirlab/vilachat/internal"
)

// MarkdownExporter exports ledger documents in Markdown format
type MarkdownExporter struct{}

// Export writes the document as a readable Markdown transcript
func (e *MarkdownExporter) Export(doc *internal.LedgerDocument, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", doc.ImagePath)

	if doc.Model != "" {
		_, _ = fmt.Fprintf(w, "**Model:** %s  \n", doc.Model)
	}
	if doc.API != "" {
		_, _ = fmt.Fprintf(w, "**API:** %s  \n", doc.API)
	}
	_, _ = fmt.Fprintf(w, "**Entries:** %d\n\n", len(doc.Entries))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, entry := range doc.Entries {
		when := time.Unix(entry.Timestamp, 0).UTC().Format(time.RFC3339)
		_, _ = fmt.Fprintf(w, "## Entry %d (%s)\n\n", i+1, when)
		_, _ = fmt.Fprintf(w, "**Prompt:**\n\n%s\n\n", entry.Prompt)
		_, _ = fmt.Fprintf(w, "**Response:**\n\n%s\n\n", entry.Response)

		if len(entry.OwlList) > 0 {
			_, _ = fmt.Fprintf(w, "**Detections:**\n\n")
			for _, item := range entry.OwlList {
				_, _ = fmt.Fprintf(w, "- %s\n", item)
			}
			_, _ = fmt.Fprintf(w, "\n")
		}

		if i < len(doc.Entries)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
