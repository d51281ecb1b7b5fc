package internal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPBackend drives an inference sidecar over HTTP. Blocking calls return
// one JSON object; streaming calls return newline-delimited JSON fragments.
// The sidecar owns the model, tokenizer and attention cache; the cache
// handle seen here is the sidecar's opaque cache id.
type HTTPBackend struct {
	baseURL string
	model   string
	api     string
	maxLen  int
	client  *http.Client

	mu    sync.Mutex
	stats map[string]string
}

// NewHTTPBackend creates a backend client for the sidecar at baseURL.
func NewHTTPBackend(baseURL, model, api string, maxContextLen int) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		model:   model,
		api:     api,
		maxLen:  maxContextLen,
		client:  &http.Client{},
		stats:   make(map[string]string),
	}
}

// Model implements Backend.
func (b *HTTPBackend) Model() string { return b.model }

// API implements Backend.
func (b *HTTPBackend) API() string { return b.api }

// MaxContextLength implements Backend.
func (b *HTTPBackend) MaxContextLength() int { return b.maxLen }

// Stats implements Backend. Returns a copy of the counters reported by the
// sidecar on the most recent call.
func (b *HTTPBackend) Stats() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.stats))
	for k, v := range b.stats {
		out[k] = v
	}
	return out
}

func (b *HTTPBackend) setStat(key, value string) {
	b.mu.Lock()
	b.stats[key] = value
	b.mu.Unlock()
}

type generateBody struct {
	Prompt            string   `json:"prompt"`
	CacheID           string   `json:"cache_id,omitempty"`
	CachePosition     int      `json:"cache_position"`
	Stop              []string `json:"stop,omitempty"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	MinNewTokens      int      `json:"min_new_tokens"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	DoSample          bool     `json:"do_sample"`
	Stream            bool     `json:"stream"`
}

type generateChunk struct {
	Text     string `json:"text"`
	Done     bool   `json:"done"`
	CacheID  string `json:"cache_id,omitempty"`
	Position int    `json:"position"`
	Error    string `json:"error,omitempty"`
}

// Generate implements Backend.
func (b *HTTPBackend) Generate(ctx context.Context, req *GenerateRequest) (*Completion, Stream, error) {
	body := generateBody{
		Prompt:            req.Prompt,
		CachePosition:     req.CachePosition,
		Stop:              req.Stop,
		MaxNewTokens:      req.MaxNewTokens,
		MinNewTokens:      req.MinNewTokens,
		Temperature:       req.Sampling.Temperature,
		TopP:              req.Sampling.TopP,
		RepetitionPenalty: req.Sampling.RepetitionPenalty,
		DoSample:          req.Sampling.DoSample,
		Stream:            req.Streaming,
	}
	if id, ok := req.CacheHandle.(string); ok {
		body.CacheID = id
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, nil, &BackendError{Mode: modeName(req.Streaming), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, &BackendError{
			Mode: modeName(req.Streaming),
			Err:  fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, string(msg)),
		}
	}

	if !req.Streaming {
		defer resp.Body.Close()
		var chunk generateChunk
		if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
			return nil, nil, &BackendError{Mode: "blocking", Err: err}
		}
		if chunk.Error != "" {
			return nil, nil, &BackendError{Mode: "blocking", Err: fmt.Errorf("%s", chunk.Error)}
		}
		b.setStat("last_call_s", fmt.Sprintf("%.3f", time.Since(start).Seconds()))
		var handle interface{}
		if chunk.CacheID != "" {
			handle = chunk.CacheID
		}
		return &Completion{Text: chunk.Text, CacheHandle: handle, CachePosition: chunk.Position}, nil, nil
	}

	stream := &httpStream{
		backend: b,
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
		start:   start,
	}
	stream.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return nil, stream, nil
}

func modeName(streaming bool) string {
	if streaming {
		return "streaming"
	}
	return "blocking"
}

// httpStream reads newline-delimited fragment chunks from the sidecar.
type httpStream struct {
	backend *HTTPBackend
	body    io.ReadCloser
	scanner *bufio.Scanner
	start   time.Time

	done     bool
	cacheID  string
	position int
	count    int
}

// Next implements Stream.
func (s *httpStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			s.finish()
			return "", &BackendError{Mode: "streaming", Err: err}
		}
		if chunk.Error != "" {
			s.finish()
			return "", &BackendError{Mode: "streaming", Err: fmt.Errorf("%s", chunk.Error)}
		}
		if chunk.Done {
			s.cacheID = chunk.CacheID
			s.position = chunk.Position
			s.finish()
			if chunk.Text != "" {
				s.count++
				return chunk.Text, nil
			}
			return "", io.EOF
		}
		s.count++
		return chunk.Text, nil
	}
	if err := s.scanner.Err(); err != nil {
		s.finish()
		return "", &BackendError{Mode: "streaming", Err: err}
	}
	s.finish()
	return "", io.EOF
}

// Stop implements Stream. Closing the response body aborts the transfer;
// the sidecar observes the disconnect and halts generation.
func (s *httpStream) Stop() {
	s.finish()
}

// Cache implements Stream.
func (s *httpStream) Cache() (interface{}, int) {
	if s.cacheID == "" {
		return nil, 0
	}
	return s.cacheID, s.position
}

func (s *httpStream) finish() {
	if !s.done {
		s.done = true
		s.body.Close()
		s.backend.setStat("last_fragments", fmt.Sprintf("%d", s.count))
		s.backend.setStat("last_call_s", fmt.Sprintf("%.3f", time.Since(s.start).Seconds()))
	}
}
