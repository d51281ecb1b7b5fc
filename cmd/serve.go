package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
)

var (
	servePort       int
	serveForwardURL string
	serveSaveJSON   bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run an HTTP server that accepts describe requests and drives the model,
saving the per-image JSON ledger exactly like interactive chat.

Endpoints:
  POST /describe   {"image_path": "...", "question": "optional"}
  GET  /health`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.ServerPort = servePort
		}
		if cmd.Flags().Changed("forward-url") {
			cfg.ForwardURL = serveForwardURL
		}
		if cmd.Flags().Changed("save-json-by-image") {
			cfg.SaveJSONByImage = serveSaveJSON
		}

		session, cleanup, err := buildSession(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		server := internal.NewAPIServer(internal.NewDispatcher(session))
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		internal.LogInfo("API server listening on %s", addr)
		return http.ListenAndServe(addr, server.Handler())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveForwardURL, "forward-url", "", "POST the per-image document to this URL after saving")
	serveCmd.Flags().BoolVar(&serveSaveJSON, "save-json-by-image", true, "Append each reply to a JSON ledger bound to the request image")
}
