package internal

import "context"

// SamplingParams are opaque pass-through generation settings. The session
// never interprets them beyond forwarding to the backend.
type SamplingParams struct {
	Temperature       float64 `yaml:"temperature" json:"temperature"`
	TopP              float64 `yaml:"top_p" json:"top_p"`
	RepetitionPenalty float64 `yaml:"repetition_penalty" json:"repetition_penalty"`
	DoSample          bool    `yaml:"do_sample" json:"do_sample"`
}

// GenerateRequest is one generation call to the inference backend.
type GenerateRequest struct {
	Prompt        string
	CacheHandle   interface{} // nil when no reusable state exists
	CachePosition int
	Stop          []string
	MaxNewTokens  int
	MinNewTokens  int
	Sampling      SamplingParams
	Streaming     bool
}

// Completion is the result of a blocking generation call.
type Completion struct {
	Text          string
	CacheHandle   interface{} // incremental state for the next call, if exposed
	CachePosition int
}

// Stream is a cancellable sequence of text fragments. Next returns io.EOF
// when the backend signals completion. Stop cancels generation; fragments
// already returned stay valid. Cache is meaningful only after Next returned
// io.EOF and reports the incremental state, if the backend exposes any.
type Stream interface {
	Next() (string, error)
	Stop()
	Cache() (handle interface{}, position int)
}

// Backend is the inference collaborator contract. Exactly one of the two
// results is populated, selected by req.Streaming: a *Completion in blocking
// mode, a Stream in streaming mode.
type Backend interface {
	Generate(ctx context.Context, req *GenerateRequest) (*Completion, Stream, error)
	// Stats exposes the backend's latency/throughput counters, read-only.
	Stats() map[string]string
	// MaxContextLength is the model's total token window.
	MaxContextLength() int
	// Model identifies the loaded checkpoint.
	Model() string
	// API names the backend implementation kind.
	API() string
}
