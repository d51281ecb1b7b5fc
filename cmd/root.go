package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
	"github.com/shirlab/vilachat/internal/archive"
)

var (
	verbose    bool
	configPath string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vilachat",
	Short: "Conversational front-end for a VILA vision-language model",
	Long: `vilachat drives a multi-turn conversation against a vision-language
model backend, streams replies to the terminal, and keeps a durable
per-image JSON ledger of every interaction.

Modes:
  vilachat chat                  # interactive terminal conversation
  vilachat serve                 # HTTP API (/describe, /health)
  vilachat receive               # ingest receiver for forwarded documents
  vilachat view                  # web viewer over the ingested directory
  vilachat export cat.json       # export a ledger document (md/yaml/jsonl/json)
  vilachat healthcheck           # verify config, backend and storage access`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// loadConfig reads the config file named by --config over the defaults.
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// openArchive builds the optional interaction archive from config. Returns
// nil when no driver is configured.
func openArchive(cfg *internal.Config) (archive.Store, error) {
	switch cfg.Archive.Driver {
	case "":
		return nil, nil
	case "memory":
		return archive.NewStore("memory")
	case "sqlite":
		path := cfg.Archive.Path
		if path == "" {
			path = "vilachat-archive.db"
		}
		return archive.NewStore("sqlite", archive.WithSQLitePath(path))
	case "redis":
		if cfg.Archive.RedisAddr == "" {
			return nil, fmt.Errorf("archive driver redis requires redis_addr")
		}
		ttl := 24 * time.Hour
		if cfg.Archive.RedisTTL != "" {
			parsed, err := time.ParseDuration(cfg.Archive.RedisTTL)
			if err != nil {
				return nil, fmt.Errorf("invalid redis_ttl: %w", err)
			}
			ttl = parsed
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.Archive.RedisAddr})
		return archive.NewStore("redis", archive.WithRedisClient(client), archive.WithRedisTTL(ttl))
	default:
		return nil, fmt.Errorf("unknown archive driver: %s", cfg.Archive.Driver)
	}
}

// buildSession wires a live session from config: backend client, optional
// archive, engine. The returned cleanup closes the archive.
func buildSession(cfg *internal.Config) (*internal.Session, func(), error) {
	store, err := openArchive(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	backend := internal.NewHTTPBackend(cfg.BackendURL, cfg.Model, cfg.API, cfg.MaxContextLen)
	session := internal.NewSession(cfg, backend, store)

	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				internal.LogWarn("failed to close archive: %v", err)
			}
		}
	}
	return session, cleanup, nil
}
