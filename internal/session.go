package internal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shirlab/vilachat/internal/archive"
)

// Session owns one live conversation: the turn store, the context budgeter,
// the cache tracker and the generation controller, plus the ledger, relay
// and archive side effects. There are no package-level globals; everything
// the old interactive loop tracked ambiently lives here.
//
// A session is mutated by at most one in-flight request at a time. The
// request dispatcher enforces that with its own lock; the CLI loop is
// single-threaded by construction.
type Session struct {
	ID string

	store    *TurnStore
	budgeter *Budgeter
	tracker  *CacheTracker
	backend  Backend
	template *ChatTemplate

	ledger  *Ledger
	relay   *Relay
	archive archive.Store

	cfg       *Config
	lastImage string
}

// PromptOptions tunes one ProcessPrompt call.
type PromptOptions struct {
	// Generate runs the model after appending the user turn. When false the
	// turn is appended and the call returns immediately (used to feed the
	// image reference into context without generating).
	Generate bool
	// Cancel, if set, is polled at fragment boundaries during streaming.
	Cancel *CancelToken
	// OnFragment receives streamed fragments as they arrive.
	OnFragment func(string)
}

// NewSession wires a session from config. archiveStore may be nil.
func NewSession(cfg *Config, backend Backend, archiveStore archive.Store) *Session {
	template := DefaultTemplate()
	store := NewTurnStore(cfg.SystemPrompt)
	tracker := NewCacheTracker()
	store.OnReset(tracker.Invalidate)

	maxLen := cfg.MaxContextLen
	if backend.MaxContextLength() > 0 {
		maxLen = backend.MaxContextLength()
	}

	return &Session{
		ID:       uuid.NewString(),
		store:    store,
		tracker:  tracker,
		backend:  backend,
		template: template,
		budgeter: &Budgeter{
			MaxContextLen: maxLen,
			MaxNewTokens:  cfg.MaxNewTokens,
			Wrap:          cfg.WrapPolicyValue(),
			Template:      template,
		},
		ledger: &Ledger{
			Model:  backend.Model(),
			API:    backend.API(),
			Indent: cfg.JSONIndent,
		},
		relay:   NewRelay(cfg.ForwardURL, cfg.AttachImage),
		archive: archiveStore,
		cfg:     cfg,
	}
}

// Store exposes the turn store (read paths and tests).
func (s *Session) Store() *TurnStore { return s.store }

// Tracker exposes the cache tracker (read paths and tests).
func (s *Session) Tracker() *CacheTracker { return s.tracker }

// LastImage returns the most recent image path or URL seen in the
// conversation, empty when none was provided yet.
func (s *Session) LastImage() string { return s.lastImage }

// Reset discards all turns, forgets the tracked image, invalidates the
// cache, and issues a fresh session id. The archive keeps the old records
// under the old id.
func (s *Session) Reset() {
	s.store.Reset()
	s.lastImage = ""
	s.ID = uuid.NewString()
	if s.cfg.SystemPrompt != "" {
		s.store.Append(RoleSystem, s.cfg.SystemPrompt)
	}
}

// Backend exposes the inference backend (stats display and tests).
func (s *Session) Backend() Backend { return s.backend }

// ProcessPrompt executes one conversation cycle: detect an image reference,
// append the user turn, and (unless opts.Generate is false) generate and
// commit the reply plus ledger/forward/archive side effects. Returns the
// reply text. On backend failure the session stays consistent: an error
// turn is committed and the error is surfaced without retry.
func (s *Session) ProcessPrompt(ctx context.Context, prompt string, opts PromptOptions) (string, error) {
	if IsImageRef(prompt) {
		s.lastImage = CleanPath(prompt)
	}

	s.store.Append(RoleUser, prompt)

	if !opts.Generate {
		return "", nil
	}

	return s.Generate(ctx, prompt, opts)
}

// Generate runs the model over the current context window and commits the
// bot turn. ledgerPrompt is the prompt text recorded in the ledger entry;
// deferred generation passes the content of the pending user turn.
func (s *Session) Generate(ctx context.Context, ledgerPrompt string, opts PromptOptions) (string, error) {
	window := s.budgeter.Assemble(s.store.Turns())
	LogInfo("context assembly: %.2f ms (tokens ~%d, turns %d/%d)",
		float64(window.AssemblyTime.Microseconds())/1000,
		window.TokenEstimate, len(window.Turns), s.store.Len())
	if window.Truncated {
		LogWarn("context window truncated to fit token budget %d", s.budgeter.Budget())
	}

	handle, position := s.tracker.Reusable(window)
	req := &GenerateRequest{
		Prompt:        window.Prompt,
		CacheHandle:   handle,
		CachePosition: position,
		Stop:          s.template.Stop,
		MaxNewTokens:  s.cfg.MaxNewTokens,
		MinNewTokens:  s.cfg.MinNewTokens,
		Sampling:      s.cfg.Sampling,
		Streaming:     !s.cfg.DisableStreaming,
	}

	controller := &Controller{Backend: s.backend, OnFragment: opts.OnFragment}

	res, err := controller.Run(ctx, req, opts.Cancel)
	if err != nil {
		// Whatever state the backend cache is in now, do not trust it.
		s.tracker.Invalidate()
		reply := res.Text
		if reply == "" {
			reply = "[error] generation failed: " + err.Error()
		}
		s.store.Append(RoleBot, reply)
		LogError("generation failed: %v", err)
		return reply, err
	}

	botTurn := s.store.Append(RoleBot, res.Text)

	if res.CacheHandle != nil {
		prefix := append(append([]Turn{}, window.Turns...), botTurn)
		covered := &ContextWindow{Turns: prefix}
		s.tracker.MarkWarm(res.CacheHandle, len(prefix), covered.PrefixFingerprint(len(prefix)), res.CachePosition)
	} else {
		s.tracker.Invalidate()
	}

	s.recordInteraction(ctx, ledgerPrompt, res.Text)
	return res.Text, nil
}

// recordInteraction writes the ledger entry (when enabled and an image is
// tracked), forwards the document, and archives the interaction. All three
// are additive: none of them can fail the turn.
func (s *Session) recordInteraction(ctx context.Context, prompt, reply string) {
	if s.cfg.SaveJSONByImage {
		if s.lastImage == "" {
			LogWarn("save-json-by-image is enabled, but no image path/URL was provided yet")
		} else {
			key := DeriveKey(s.lastImage)
			entry := LedgerEntry{
				Timestamp: time.Now().Unix(),
				Prompt:    prompt,
				Response:  reply,
			}
			doc, err := s.ledger.AppendEntry(key, s.lastImage, entry)
			if err != nil {
				LogError("ledger append failed: %v", err)
			} else if s.relay.Enabled() {
				// Detached so a slow or unreachable collector cannot stall
				// the interactive loop or the dispatcher lock.
				image := s.lastImage
				go func() {
					_ = s.relay.Forward(doc, image)
				}()
			}
		}
	}

	if s.archive != nil {
		rec := &archive.Record{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			ImagePath: s.lastImage,
			Prompt:    prompt,
			Response:  reply,
			CreatedAt: time.Now(),
		}
		if err := s.archive.Append(ctx, rec); err != nil {
			LogWarn("archive append failed: %v", err)
		}
	}
}
