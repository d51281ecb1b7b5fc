package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
)

var (
	receivePort int
	receiveDir  string
)

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Run the ingest receiver",
	Long: `Run the receiver that a forwarding chat or serve instance POSTs per-image
documents to. Each document is saved as <basename>.json next to its image
attachment (if one was included) under the ingest directory.

Endpoints:
  POST /ingest
  GET  /health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.IngestPort = receivePort
		}
		if cmd.Flags().Changed("dir") {
			cfg.IngestDir = receiveDir
		}

		receiver, err := internal.NewReceiver(cfg.IngestDir)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf(":%d", cfg.IngestPort)
		internal.LogInfo("ingest receiver listening on %s, saving to %s", addr, cfg.IngestDir)
		return http.ListenAndServe(addr, receiver.Handler())
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().IntVar(&receivePort, "port", 5000, "Port to listen on")
	receiveCmd.Flags().StringVar(&receiveDir, "dir", "ingested", "Directory to save ingested documents and images")
}
