package internal

import (
	"hash/fnv"
	"strconv"
	"time"
)

// WrapPolicy controls what happens to the turn that straddles the token
// budget boundary.
type WrapPolicy int

const (
	// WrapDropOldest drops whole turns from the oldest end until the
	// remainder fits the budget.
	WrapDropOldest WrapPolicy = iota
	// WrapSplit keeps the straddling turn but trims its content from the
	// front so the window fits.
	WrapSplit
)

// ContextWindow is the bounded input representation derived from the turn
// store for one generation call. It is recomputed every turn and never
// persisted.
type ContextWindow struct {
	Turns         []Turn // retained turns, oldest first
	Prompt        string // template-rendered backend input
	TokenEstimate int
	CachePosition int
	Truncated     bool
	AssemblyTime  time.Duration
}

// PrefixFingerprint returns a fingerprint of the first n retained turns.
// The cache tracker compares fingerprints to decide whether previously
// computed state still covers the window's prefix.
func (w *ContextWindow) PrefixFingerprint(n int) uint64 {
	if n > len(w.Turns) {
		n = len(w.Turns)
	}
	h := fnv.New64a()
	for _, t := range w.Turns[:n] {
		_, _ = h.Write([]byte(string(t.Role)))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(t.Content))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(strconv.Itoa(t.Index)))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Budgeter converts the turn store into a bounded context window. The token
// budget is MaxContextLen - MaxNewTokens so the reply always has room.
type Budgeter struct {
	MaxContextLen int
	MaxNewTokens  int
	Wrap          WrapPolicy
	Template      *ChatTemplate
}

// estimateTokens is a deterministic byte-length heuristic. Real tokenization
// lives behind the backend contract; the budgeter only needs a stable,
// slightly conservative estimate.
func estimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return len(content)/4 + 1
}

// turnCost returns the estimated token cost of one rendered turn.
func (b *Budgeter) turnCost(t Turn) int {
	return estimateTokens(t.Content) + b.Template.Overhead
}

// Budget returns the usable token budget for context.
func (b *Budgeter) Budget() int {
	budget := b.MaxContextLen - b.MaxNewTokens
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Assemble walks turns from newest to oldest, accumulating estimated cost
// until the budget is exhausted. The system turn, if present, is always
// retained regardless of budget. The most recent turn is always included;
// if it alone exceeds the budget the window is flagged Truncated (and under
// WrapSplit its content is trimmed from the front to fit).
func (b *Budgeter) Assemble(turns []Turn) *ContextWindow {
	start := time.Now()
	budget := b.Budget()

	w := &ContextWindow{}
	if len(turns) == 0 {
		w.Prompt = ""
		w.AssemblyTime = time.Since(start)
		return w
	}

	var system *Turn
	if turns[0].Role == RoleSystem {
		system = &turns[0]
	}

	used := 0
	if system != nil {
		// Reserved off the top even when it blows the budget.
		used += b.turnCost(*system)
	}

	// Newest to oldest, skipping the system turn (already reserved).
	var kept []Turn
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if system != nil && t.Index == system.Index {
			continue
		}
		cost := b.turnCost(t)
		if len(kept) > 0 && used+cost > budget {
			// Older turns are silently dropped from this window only; the
			// turn store keeps them.
			break
		}
		if len(kept) == 0 && used+cost > budget {
			// The newest turn alone overflows. Keep it anyway; quality is
			// degraded but generation must not abort.
			w.Truncated = true
			if b.Wrap == WrapSplit {
				t = b.splitToFit(t, budget-used)
				cost = b.turnCost(t)
			}
		}
		kept = append(kept, t)
		used += cost
	}

	// kept is newest-first; restore chronological order.
	ordered := make([]Turn, 0, len(kept)+1)
	if system != nil {
		ordered = append(ordered, *system)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		ordered = append(ordered, kept[i])
	}

	w.Turns = ordered
	w.Prompt = b.Template.RenderAll(ordered)
	w.TokenEstimate = used
	w.AssemblyTime = time.Since(start)
	return w
}

// splitToFit trims turn content from the front so its estimated cost fits
// within remaining tokens. At least one estimated token of content survives.
func (b *Budgeter) splitToFit(t Turn, remaining int) Turn {
	maxContent := remaining - b.Template.Overhead
	if maxContent < 1 {
		maxContent = 1
	}
	maxBytes := maxContent * 4
	if len(t.Content) > maxBytes {
		t.Content = t.Content[len(t.Content)-maxBytes:]
	}
	return t
}
