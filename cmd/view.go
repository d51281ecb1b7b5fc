package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
)

var (
	viewPort         int
	viewRoot         string
	viewScanInterval float64
)

// viewCmd represents the view command
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Run the web viewer over an ingested directory",
	Long: `Serve a web UI that shows every image and description pair in the ingest
directory, auto-refreshing as new documents arrive.

Endpoints:
  GET /            HTML viewer
  GET /api/items   JSON listing
  GET /img/<rel>   image files
  GET /meta/<rel>  JSON documents`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.ViewPort = viewPort
		}
		if cmd.Flags().Changed("root") {
			cfg.ViewRoot = viewRoot
		}
		if cmd.Flags().Changed("scan-interval") {
			cfg.ScanInterval = viewScanInterval
		}
		if cfg.ViewRoot == "" {
			cfg.ViewRoot = cfg.IngestDir
		}

		viewer, err := internal.NewViewer(cfg.ViewRoot, cfg.ScanInterval)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf(":%d", cfg.ViewPort)
		internal.LogInfo("viewer listening on %s, serving %s", addr, viewer.Root)
		return http.ListenAndServe(addr, viewer.Handler())
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().IntVar(&viewPort, "port", 8090, "Port to listen on")
	viewCmd.Flags().StringVar(&viewRoot, "root", "", "Directory holding ingested files (defaults to the ingest dir)")
	viewCmd.Flags().Float64Var(&viewScanInterval, "scan-interval", 2.0, "Seconds between UI auto-refreshes")
}
