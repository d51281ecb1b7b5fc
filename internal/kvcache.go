package internal

// CacheState is the reuse state of previously computed attention state.
type CacheState int

const (
	// CacheCold means no reusable state exists.
	CacheCold CacheState = iota
	// CacheWarm means reusable state exists, tied to a specific contiguous
	// turn prefix.
	CacheWarm
)

func (s CacheState) String() string {
	if s == CacheWarm {
		return "WARM"
	}
	return "COLD"
}

// CacheTracker decides, per request, whether previously computed backend
// state may be reused and where incremental computation should resume.
// A stale handle handed to the backend is a correctness error, not a
// performance loss, so the tracker invalidates eagerly: any doubt about the
// prefix means COLD.
type CacheTracker struct {
	state       CacheState
	handle      interface{}
	prefixLen   int
	fingerprint uint64
	position    int
}

// NewCacheTracker returns a tracker in the COLD state.
func NewCacheTracker() *CacheTracker {
	return &CacheTracker{state: CacheCold}
}

// State returns the current reuse state.
func (c *CacheTracker) State() CacheState {
	return c.state
}

// Invalidate discards any reusable state. Called on reset and on any turn
// mutation outside plain append.
func (c *CacheTracker) Invalidate() {
	c.state = CacheCold
	c.handle = nil
	c.prefixLen = 0
	c.fingerprint = 0
	c.position = 0
}

// MarkWarm records reusable state after a successful generation. The handle
// is valid for the window prefix of prefixLen turns with the given
// fingerprint, resuming at position.
func (c *CacheTracker) MarkWarm(handle interface{}, prefixLen int, fingerprint uint64, position int) {
	if handle == nil {
		c.Invalidate()
		return
	}
	c.state = CacheWarm
	c.handle = handle
	c.prefixLen = prefixLen
	c.fingerprint = fingerprint
	c.position = position
}

// Reusable returns the cache handle and resume position for the given
// window, or (nil, 0) when the window's prefix no longer matches what the
// cached state assumed. A mismatch invalidates the tracker immediately.
func (c *CacheTracker) Reusable(w *ContextWindow) (interface{}, int) {
	if c.state != CacheWarm {
		return nil, 0
	}
	if c.prefixLen > len(w.Turns) || w.PrefixFingerprint(c.prefixLen) != c.fingerprint {
		// The budgeter dropped or changed turns the cached state assumed
		// present. Prefer COLD over a wrong WARM.
		c.Invalidate()
		return nil, 0
	}
	return c.handle, c.position
}
