package internal

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// AutoPrompt is the description prompt injected for every dispatched
// request.
const AutoPrompt = "Describe the image"

// Dispatcher serializes concurrent external requests into single-session
// turns. Each request holds the session lock for its full duration (image
// append plus one or two generations) and starts from a hard reset, so no
// state leaks between independent callers.
type Dispatcher struct {
	mu      sync.Mutex
	session *Session
}

// NewDispatcher wraps a session for request-driven use.
func NewDispatcher(session *Session) *Dispatcher {
	return &Dispatcher{session: session}
}

// DescribeResult is the outcome of one dispatched describe request.
type DescribeResult struct {
	ImagePath        string
	AutoPrompt       string
	ResponseDescribe string
	// ResponseQuestion is nil when no follow-up question was supplied.
	ResponseQuestion *string
}

// Describe runs the full request cycle: reset, append the image reference
// without generating, generate a description, and optionally generate an
// answer to a follow-up question.
func (d *Dispatcher) Describe(ctx context.Context, imagePath, question string) (*DescribeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	requestID := uuid.NewString()
	LogInfo("describe request %s: image=%s question=%q", requestID, imagePath, question)

	d.session.Reset()

	if _, err := d.session.ProcessPrompt(ctx, imagePath, PromptOptions{Generate: false}); err != nil {
		return nil, err
	}

	describe, err := d.session.ProcessPrompt(ctx, AutoPrompt, PromptOptions{Generate: true})
	if err != nil {
		return nil, err
	}

	result := &DescribeResult{
		ImagePath:        CleanPath(imagePath),
		AutoPrompt:       AutoPrompt,
		ResponseDescribe: describe,
	}

	if question != "" {
		answer, err := d.session.ProcessPrompt(ctx, question, PromptOptions{Generate: true})
		if err != nil {
			return nil, err
		}
		result.ResponseQuestion = &answer
	}

	LogInfo("describe request %s done", requestID)
	return result, nil
}
