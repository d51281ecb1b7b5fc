// Package testutil provides fixtures shared by the package tests.
package testutil

import (
	"context"
	"io"
	"strings"

	"github.com/shirlab/vilachat/internal"
)

// ScriptedReply is one pre-planned backend response.
type ScriptedReply struct {
	Fragments []string
	Err       error // returned from the Generate call itself
	StreamErr error // returned mid-stream after Fragments are exhausted
	CacheID   string
	Position  int
}

// ScriptedBackend implements internal.Backend with canned replies, in call
// order. It records the requests it saw for assertions.
type ScriptedBackend struct {
	Replies  []ScriptedReply
	Requests []*internal.GenerateRequest

	ModelName  string
	APIName    string
	MaxContext int

	calls int
}

// NewScriptedBackend returns a backend that replays the given replies.
func NewScriptedBackend(replies ...ScriptedReply) *ScriptedBackend {
	return &ScriptedBackend{
		Replies:    replies,
		ModelName:  "test-model",
		APIName:    "test",
		MaxContext: 4096,
	}
}

// Model implements internal.Backend.
func (b *ScriptedBackend) Model() string { return b.ModelName }

// API implements internal.Backend.
func (b *ScriptedBackend) API() string { return b.APIName }

// MaxContextLength implements internal.Backend.
func (b *ScriptedBackend) MaxContextLength() int { return b.MaxContext }

// Stats implements internal.Backend.
func (b *ScriptedBackend) Stats() map[string]string {
	return map[string]string{"calls": "scripted"}
}

// Generate implements internal.Backend.
func (b *ScriptedBackend) Generate(ctx context.Context, req *internal.GenerateRequest) (*internal.Completion, internal.Stream, error) {
	b.Requests = append(b.Requests, req)

	var reply ScriptedReply
	if b.calls < len(b.Replies) {
		reply = b.Replies[b.calls]
	}
	b.calls++

	if reply.Err != nil {
		return nil, nil, reply.Err
	}

	if !req.Streaming {
		var handle interface{}
		if reply.CacheID != "" {
			handle = reply.CacheID
		}
		return &internal.Completion{
			Text:          strings.Join(reply.Fragments, ""),
			CacheHandle:   handle,
			CachePosition: reply.Position,
		}, nil, nil
	}

	return nil, &scriptedStream{reply: reply}, nil
}

type scriptedStream struct {
	reply   ScriptedReply
	next    int
	stopped bool
}

func (s *scriptedStream) Next() (string, error) {
	if s.stopped {
		return "", io.EOF
	}
	if s.next < len(s.reply.Fragments) {
		fragment := s.reply.Fragments[s.next]
		s.next++
		return fragment, nil
	}
	if s.reply.StreamErr != nil {
		return "", s.reply.StreamErr
	}
	return "", io.EOF
}

func (s *scriptedStream) Stop() {
	s.stopped = true
}

func (s *scriptedStream) Cache() (interface{}, int) {
	if s.stopped || s.reply.CacheID == "" {
		return nil, 0
	}
	return s.reply.CacheID, s.reply.Position
}
