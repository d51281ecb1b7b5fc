package export

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/shirlab/vilachat/internal"
)

// YAMLExporter exports ledger documents in YAML format
type YAMLExporter struct{}

type yamlEntry struct {
	Timestamp int64    `yaml:"timestamp"`
	Prompt    string   `yaml:"prompt"`
	Response  string   `yaml:"response"`
	OwlRaw    string   `yaml:"owl_raw,omitempty"`
	OwlList   []string `yaml:"owl_list,omitempty"`
}

type yamlDocument struct {
	ImagePath string      `yaml:"image_path"`
	Model     string      `yaml:"model"`
	API       string      `yaml:"api"`
	Entries   []yamlEntry `yaml:"entries"`
}

// Export writes the document as YAML
func (e *YAMLExporter) Export(doc *internal.LedgerDocument, w io.Writer) error {
	out := yamlDocument{
		ImagePath: doc.ImagePath,
		Model:     doc.Model,
		API:       doc.API,
		Entries:   make([]yamlEntry, 0, len(doc.Entries)),
	}
	for _, entry := range doc.Entries {
		out.Entries = append(out.Entries, yamlEntry(entry))
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return nil
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
