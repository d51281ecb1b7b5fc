package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/shirlab/vilachat/internal"
)

var (
	chatPrompts        []string
	chatSystemPrompt   string
	chatBackendURL     string
	chatMaxNewTokens   int
	chatSaveJSON       bool
	chatForwardURL     string
	chatDisableStream  bool
	chatDisableStats   bool
	chatJSONIndent     int
	chatPromptColor    string
	chatReplyColor     string
	chatNoAutoGenerate bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with the model",
	Long: `Run an interactive terminal conversation. Paste an image path or URL
as a prompt to bring it into context; subsequent prompts are answered
about the conversation so far.

Special prompts:
  reset, clear      discard the conversation and start fresh
  <file>.txt/.json  load the prompt text from a file

Press Ctrl+C during generation to stop it (partial output is kept);
press Ctrl+C again at the prompt to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyChatFlags(cmd, cfg)

		session, cleanup, err := buildSession(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		return runChatLoop(cmd.Context(), session, cfg)
	},
}

// applyChatFlags lays changed flags over the config file values.
func applyChatFlags(cmd *cobra.Command, cfg *internal.Config) {
	if cmd.Flags().Changed("system-prompt") {
		cfg.SystemPrompt = chatSystemPrompt
	}
	if cmd.Flags().Changed("backend-url") {
		cfg.BackendURL = chatBackendURL
	}
	if cmd.Flags().Changed("max-new-tokens") {
		cfg.MaxNewTokens = chatMaxNewTokens
	}
	if cmd.Flags().Changed("save-json-by-image") {
		cfg.SaveJSONByImage = chatSaveJSON
	}
	if cmd.Flags().Changed("forward-url") {
		cfg.ForwardURL = chatForwardURL
	}
	if cmd.Flags().Changed("disable-streaming") {
		cfg.DisableStreaming = chatDisableStream
	}
	if cmd.Flags().Changed("disable-stats") {
		cfg.DisableStats = chatDisableStats
	}
	if cmd.Flags().Changed("json-indent") {
		cfg.JSONIndent = chatJSONIndent
	}
	if cmd.Flags().Changed("prompt-color") {
		cfg.PromptColor = chatPromptColor
	}
	if cmd.Flags().Changed("reply-color") {
		cfg.ReplyColor = chatReplyColor
	}
}

// colorStyle maps a termcolor-style name onto a lipgloss style.
func colorStyle(name string) lipgloss.Style {
	codes := map[string]string{
		"black":   "0",
		"red":     "9",
		"green":   "10",
		"yellow":  "11",
		"blue":    "12",
		"magenta": "13",
		"cyan":    "14",
		"white":   "15",
	}
	code, ok := codes[strings.ToLower(name)]
	if !ok {
		code = "15"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(code))
}

// loadPromptFile reads prompts from a .txt (one per line) or .json (array
// of strings) file.
func loadPromptFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		var prompts []string
		if err := json.Unmarshal(data, &prompts); err != nil {
			return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
		}
		return prompts, nil
	}
	var prompts []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			prompts = append(prompts, line)
		}
	}
	return prompts, nil
}

func runChatLoop(ctx context.Context, session *internal.Session, cfg *internal.Config) error {
	promptStyle := colorStyle(cfg.PromptColor)
	replyStyle := colorStyle(cfg.ReplyColor)

	cancel := internal.NewCancelToken()
	generating := false

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-sigs:
				if generating {
					cancel.Cancel()
				} else {
					fmt.Println()
					os.Exit(0)
				}
			case <-done:
				return
			}
		}
	}()

	queued := append([]string{}, chatPrompts...)
	reader := bufio.NewReader(os.Stdin)

	opts := func() internal.PromptOptions {
		return internal.PromptOptions{
			Generate: !chatNoAutoGenerate,
			Cancel:   cancel,
			OnFragment: func(fragment string) {
				fmt.Print(replyStyle.Render(fragment))
			},
		}
	}

	for {
		var userPrompt string
		if len(queued) > 0 {
			userPrompt = queued[0]
			queued = queued[1:]
			fmt.Println(promptStyle.Render(">> PROMPT: " + userPrompt))
		} else if len(chatPrompts) > 0 {
			return nil // queued prompts exhausted
		} else {
			fmt.Print(promptStyle.Render(">> PROMPT: "))
			line, err := reader.ReadString('\n')
			if err != nil {
				return nil // EOF ends the session
			}
			userPrompt = strings.TrimSpace(line)
		}
		fmt.Println()

		if userPrompt == "" {
			continue
		}

		lower := strings.ToLower(userPrompt)
		if lower == "reset" || lower == "clear" {
			internal.LogInfo("resetting chat history")
			session.Reset()
			continue
		}
		if !internal.IsImageRef(userPrompt) &&
			(strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".json")) {
			prompts, err := loadPromptFile(userPrompt)
			if err != nil {
				internal.LogError("%v", err)
				continue
			}
			userPrompt = strings.Join(prompts, " ")
		}

		cancel.Reset()
		generating = true
		var reply string
		var err error
		if lower == "generate" && session.Store().NextRole() != internal.RoleUser {
			// A pending user turn exists from --disable-automatic-generation.
			pending, _ := session.Store().Last()
			o := opts()
			o.Generate = true
			reply, err = session.Generate(ctx, pending.Content, o)
		} else {
			reply, err = session.ProcessPrompt(ctx, userPrompt, opts())
		}
		generating = false
		if err != nil {
			fmt.Println(colorStyle("red").Render(err.Error()))
		} else if cfg.DisableStreaming {
			fmt.Println(replyStyle.Render(reply))
		}
		fmt.Println()

		if !cfg.DisableStats {
			printStats(session)
		}
	}
}

// printStats renders the backend's counters as a small aligned table.
func printStats(session *internal.Session) {
	stats := session.Backend().Stats()
	if len(stats) == 0 {
		return
	}
	keys := make([]string, 0, len(stats))
	width := 0
	for k := range stats {
		keys = append(keys, k)
		if len(k) > width {
			width = len(k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-*s  %s\n", width, k, stats[k])
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringArrayVar(&chatPrompts, "prompt", nil, "Queue an initial prompt (repeatable)")
	chatCmd.Flags().StringVar(&chatSystemPrompt, "system-prompt", "", "System prompt seeded at the start of the conversation")
	chatCmd.Flags().StringVar(&chatBackendURL, "backend-url", "", "Inference backend base URL")
	chatCmd.Flags().IntVar(&chatMaxNewTokens, "max-new-tokens", 512, "Maximum tokens to generate per reply")
	chatCmd.Flags().BoolVar(&chatSaveJSON, "save-json-by-image", false, "Append each reply to a JSON ledger bound to the last image")
	chatCmd.Flags().StringVar(&chatForwardURL, "forward-url", "", "POST the per-image document to this URL after saving")
	chatCmd.Flags().BoolVar(&chatDisableStream, "disable-streaming", false, "Disable token streaming output")
	chatCmd.Flags().BoolVar(&chatDisableStats, "disable-stats", false, "Suppress generation performance stats")
	chatCmd.Flags().IntVar(&chatJSONIndent, "json-indent", 2, "Indentation for ledger JSON (0 to minify)")
	chatCmd.Flags().StringVar(&chatPromptColor, "prompt-color", "blue", "Color name for user prompts")
	chatCmd.Flags().StringVar(&chatReplyColor, "reply-color", "green", "Color name for model replies")
	chatCmd.Flags().BoolVar(&chatNoAutoGenerate, "disable-automatic-generation", false, "Append prompts without generating until 'generate' is issued")
}
