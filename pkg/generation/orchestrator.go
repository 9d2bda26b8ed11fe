// Package generation owns the lifecycle of a prompt submission: it validates the prompt, runs it
// through the llm client and keeps the resulting state for the presentation layer.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/integrail/gsearch/pkg/llm"
	"github.com/integrail/gsearch/pkg/logger"
)

const (
	EmptyResponseMessage = "AI response was blocked or empty. Try a different prompt."
	FallbackErrorMessage = "Failed to communicate with the AI model."
	ErrorPrefix          = "Error: "
)

var ErrInFlight = errors.New("a generation is already in progress")

type Reporter interface {
	Report(msg string)
}

type Option func(o *Orchestrator)

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

func WithReporter(reporter Reporter) Option {
	return func(o *Orchestrator) {
		o.reporter = reporter
	}
}

// WithObserver registers a callback invoked with every new state.
func WithObserver(observer func(State)) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, observer)
	}
}

// WithRequestDefaults sets model and retry settings applied to every submission.
func WithRequestDefaults(request llm.GenerateRequest) Option {
	return func(o *Orchestrator) {
		o.defaults = request
	}
}

type Orchestrator struct {
	llm       llm.Client
	log       *slog.Logger
	reporter  Reporter
	observers []func(State)
	defaults  llm.GenerateRequest

	mu    sync.Mutex
	state State
}

func NewOrchestrator(client llm.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:   client,
		log:   logger.Discard(),
		state: idle(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs the prompt to completion and returns the terminal state it reached.
// A blank prompt, or a submission while another one is loading, leaves the state untouched.
func (o *Orchestrator) Submit(ctx context.Context, prompt string) State {
	if strings.TrimSpace(prompt) == "" {
		return o.State()
	}
	if err := o.begin(); err != nil {
		o.log.Warn("submission rejected", "error", err)
		return o.State()
	}

	requestID := uuid.NewString()
	log := o.log.With("requestID", requestID)
	log.Info("submitting prompt", "promptLength", len(prompt))

	request := o.defaults
	request.Prompt = prompt
	request.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Info("retrying generation", "attempt", attempt, "delay", delay, "error", err)
		o.report(fmt.Sprintf("Attempt %d failed (%s), retrying in %s...", attempt, err.Error(), delay.Round(time.Millisecond)))
	}

	started := time.Now()
	res, err := o.generate(ctx, request)
	if err != nil {
		log.Warn("generation failed", "error", err, "duration", time.Since(started))
		return o.finish(failed(errorMessage(err)))
	}
	log.Info("generation succeeded", "attempts", res.Attempts, "sources", len(res.Sources), "duration", time.Since(started))
	return o.finish(succeeded(res.Response, res.Text, res.Sources))
}

// generate keeps a panicking client from leaving the orchestrator in the loading state.
func (o *Orchestrator) generate(ctx context.Context, request llm.GenerateRequest) (res *llm.GenerateResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, errors.Errorf("generation aborted: %v", r)
		}
	}()
	res, err = o.llm.Generate(ctx, request)
	if err == nil && res == nil {
		err = llm.ErrEmptyResponse
	}
	return res, err
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	if o.state.IsLoading() {
		o.mu.Unlock()
		return ErrInFlight
	}
	o.state = loading()
	o.mu.Unlock()
	o.notify(loading())
	return nil
}

func (o *Orchestrator) finish(state State) State {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
	o.notify(state)
	return state
}

func (o *Orchestrator) notify(state State) {
	for _, observer := range o.observers {
		observer(state)
	}
}

func (o *Orchestrator) report(msg string) {
	if o.reporter != nil {
		o.reporter.Report(msg)
	}
}

func errorMessage(err error) string {
	if errors.Is(err, llm.ErrEmptyResponse) {
		return EmptyResponseMessage
	}
	msg := err.Error()
	if msg == "" {
		msg = FallbackErrorMessage
	}
	return ErrorPrefix + msg
}
