package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var healthcheckVerbose bool

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check config, backend and storage access",
	Long: `Check the health of a vilachat deployment by verifying:
  • Config file parses
  • Inference backend reachability
  • Ingest directory writability
  • Archive driver availability

Useful for debugging deployments before starting chat or serve.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(sectionStyle.Render("vilachat health check"))
		fmt.Println()

		failed := false

		// Step 1: config
		fmt.Println(infoStyle.Render("Step 1: Loading configuration..."))
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println(errorStyle.Render("config failed to load:"), err)
			return err
		}
		fmt.Println(successStyle.Render("config loaded"))
		if healthcheckVerbose {
			fmt.Printf("   Backend: %s\n", cfg.BackendURL)
			fmt.Printf("   Model:   %s (%s)\n", cfg.Model, cfg.API)
		}
		fmt.Println()

		// Step 2: backend
		fmt.Println(infoStyle.Render("Step 2: Checking inference backend..."))
		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get(cfg.BackendURL + "/health")
		if err != nil {
			fmt.Println(warningStyle.Render("backend unreachable:"), err)
			failed = true
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				fmt.Println(successStyle.Render("backend is up"))
			} else {
				fmt.Println(warningStyle.Render(fmt.Sprintf("backend returned status %d", resp.StatusCode)))
				failed = true
			}
		}
		fmt.Println()

		// Step 3: ingest directory
		fmt.Println(infoStyle.Render("Step 3: Checking ingest directory..."))
		if err := os.MkdirAll(cfg.IngestDir, 0755); err != nil {
			fmt.Println(errorStyle.Render("cannot create ingest directory:"), err)
			failed = true
		} else {
			probe := cfg.IngestDir + "/.healthcheck"
			if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
				fmt.Println(errorStyle.Render("ingest directory not writable:"), err)
				failed = true
			} else {
				os.Remove(probe)
				fmt.Println(successStyle.Render("ingest directory writable"))
				if healthcheckVerbose {
					fmt.Printf("   Directory: %s\n", cfg.IngestDir)
				}
			}
		}
		fmt.Println()

		// Step 4: archive
		fmt.Println(infoStyle.Render("Step 4: Checking archive driver..."))
		if cfg.Archive.Driver == "" {
			fmt.Println(infoStyle.Render("archive disabled"))
		} else {
			store, err := openArchive(cfg)
			if err != nil {
				fmt.Println(errorStyle.Render("archive unavailable:"), err)
				failed = true
			} else {
				_ = store.Close()
				fmt.Println(successStyle.Render(fmt.Sprintf("archive driver %q ready", cfg.Archive.Driver)))
			}
		}
		fmt.Println()

		// Summary
		fmt.Println(sectionStyle.Render("Summary"))
		if failed {
			fmt.Println(errorStyle.Render("health check failed"))
			return fmt.Errorf("health check failed")
		}
		fmt.Println(successStyle.Render("health check passed"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "detail", false, "Show detailed diagnostic information")
}
