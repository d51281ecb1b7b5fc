package internal

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"
)

// CancelToken is a cooperative cancellation flag checked at fragment
// boundaries. Cancellation is not instantaneous; it takes effect on the
// next fragment pull and always leaves partial output committed.
type CancelToken struct {
	flag atomic.Bool
}

// NewCancelToken returns an unset token.
func NewCancelToken() *CancelToken {
	return &CancelToken{}
}

// Cancel requests cancellation. Safe to call from another goroutine (for
// example a signal handler).
func (c *CancelToken) Cancel() {
	c.flag.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (c *CancelToken) Cancelled() bool {
	return c.flag.Load()
}

// Reset clears the flag so the token can be reused for the next turn.
func (c *CancelToken) Reset() {
	c.flag.Store(false)
}

// GenerateResult carries the produced text and timing milestones of one
// generation call.
type GenerateResult struct {
	Text      string
	Fragments int
	// TimeToFirst is the latency of the first fragment. Zero and meaningless
	// when no fragment was produced.
	TimeToFirst time.Duration
	Total       time.Duration
	// Throughput is fragments per second of the streaming phase, reported
	// only when at least one fragment was produced.
	Throughput float64
	Cancelled  bool

	CacheHandle   interface{}
	CachePosition int
}

// Controller drives the backend's generation call, measures latency
// milestones, and supports cooperative cancellation mid-stream.
type Controller struct {
	Backend Backend
	// OnFragment, if set, receives each streamed fragment as it arrives
	// (the chat loop uses it to echo styled output).
	OnFragment func(fragment string)
}

// Run executes one generation request. In blocking mode the full text comes
// back in a single call; in streaming mode fragments are pulled until the
// backend completes, an error occurs, or cancel fires. On backend failure
// the partial result accumulated so far is still returned alongside the
// error so the caller can commit it.
func (c *Controller) Run(ctx context.Context, req *GenerateRequest, cancel *CancelToken) (*GenerateResult, error) {
	start := time.Now()
	res := &GenerateResult{}

	completion, stream, err := c.Backend.Generate(ctx, req)
	if err != nil {
		res.Total = time.Since(start)
		return res, err
	}

	if !req.Streaming {
		res.Text = completion.Text
		res.Total = time.Since(start)
		res.CacheHandle = completion.CacheHandle
		res.CachePosition = completion.CachePosition
		LogInfo("generate_total: %.3fs", res.Total.Seconds())
		return res, nil
	}

	var firstAt time.Time
	for {
		if cancel != nil && cancel.Cancelled() {
			stream.Stop()
			res.Cancelled = true
			break
		}

		fragment, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			res.Total = time.Since(start)
			c.finishStreaming(res, start, firstAt)
			return res, err
		}

		if res.Fragments == 0 {
			firstAt = time.Now()
			res.TimeToFirst = firstAt.Sub(start)
			LogInfo("ttft: %.2f ms", float64(res.TimeToFirst.Microseconds())/1000)
		}
		res.Fragments++
		res.Text += fragment
		if c.OnFragment != nil {
			c.OnFragment(fragment)
		}
	}

	res.CacheHandle, res.CachePosition = stream.Cache()
	c.finishStreaming(res, start, firstAt)
	return res, nil
}

// finishStreaming fills the total and throughput milestones. Throughput is
// undefined without fragments: a zero-token denominator is meaningless.
func (c *Controller) finishStreaming(res *GenerateResult, start, firstAt time.Time) {
	res.Total = time.Since(start)
	if res.Fragments > 0 {
		elapsed := time.Since(firstAt).Seconds()
		if elapsed > 0 {
			res.Throughput = float64(res.Fragments) / elapsed
		}
		LogInfo("generate_total: %.3fs | fragments: %d | throughput: %.2f frag/s",
			res.Total.Seconds(), res.Fragments, res.Throughput)
	} else {
		LogInfo("generate_total: %.3fs | fragments: 0", res.Total.Seconds())
	}
}
