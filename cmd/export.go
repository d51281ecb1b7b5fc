package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
	"github.com/shirlab/vilachat/internal/export"
)

var (
	exportFormat string
	exportOutput string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <ledger.json>",
	Short: "Export a ledger document to another format",
	Long: `Export a per-image ledger document to jsonl, markdown, yaml or json.

By default the output is written next to the input with the format's
extension; use --output to write elsewhere, or --output - for stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := internal.ReadLedgerDocument(args[0])
		if err != nil {
			return fmt.Errorf("failed to load ledger document: %w", err)
		}

		exporter, err := export.NewExporter(exportFormat)
		if err != nil {
			return err
		}

		if exportOutput == "-" {
			return exporter.Export(doc, os.Stdout)
		}

		outPath := exportOutput
		if outPath == "" {
			base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
			outPath = base + "." + exporter.Extension()
		}

		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if err := exporter.Export(doc, f); err != nil {
			return err
		}

		internal.LogInfo("exported %s to %s", args[0], outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output path ('-' for stdout)")
}
