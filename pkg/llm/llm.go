package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/integrail/gsearch/pkg/extract"
)

var (
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrEmptyResponse is returned when the model answered without usable text.
	ErrEmptyResponse = extract.ErrEmptyResult
)

type Client interface {
	Generate(ctx context.Context, request GenerateRequest) (*GenerateResponse, error)
}

type GenerateRequest struct {
	Prompt        string        `json:"prompt" yaml:"prompt"`
	Model         string        `json:"model" yaml:"model"`
	MaxAttempts   int           `json:"maxAttempts" yaml:"maxAttempts"` // total attempts including the first one (default: 3)
	RetryCooldown time.Duration `json:"retryCooldown" yaml:"retryCooldown"`

	// OnRetry is notified before the client waits for another attempt.
	OnRetry func(attempt int, delay time.Duration, err error) `json:"-" yaml:"-"`
}

type GenerateResponse struct {
	Response string           `json:"response" yaml:"response"`
	Text     string           `json:"text" yaml:"text"`
	Sources  []extract.Source `json:"sources,omitempty" yaml:"sources,omitempty"`
	Attempts int              `json:"attempts" yaml:"attempts"`
}

// Request is a validated prompt bound to a model with search grounding enabled.
type Request struct {
	prompt string
	model  string
}

func NewRequest(prompt, model string) (Request, error) {
	if strings.TrimSpace(prompt) == "" {
		return Request{}, ErrEmptyPrompt
	}
	if model == "" {
		return Request{}, errors.Errorf("model is not specified")
	}
	return Request{prompt: prompt, model: model}, nil
}

func (r Request) Prompt() string {
	return r.prompt
}

func (r Request) Model() string {
	return r.model
}

func (r Request) SearchGrounding() bool {
	return true
}
