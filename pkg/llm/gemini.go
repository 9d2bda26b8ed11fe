package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/gsearch/pkg/client"
	"github.com/integrail/gsearch/pkg/client/dto"
	"github.com/integrail/gsearch/pkg/extract"
	"github.com/integrail/gsearch/pkg/logger"
)

const (
	DefaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "gemini-2.5-flash-preview-05-20"
)

func NewGemini(log *slog.Logger, httpClient client.Client, geminiUrl, geminiApiKey, model string) Client {
	return &geminiClient{
		log:          lo.Ternary(log != nil, log, logger.Discard()),
		client:       httpClient,
		geminiUrl:    strings.TrimSuffix(lo.If(geminiUrl == "", DefaultGeminiURL).Else(geminiUrl), "/"),
		geminiApiKey: geminiApiKey,
		model:        lo.If(model == "", DefaultGeminiModel).Else(model),
	}
}

type geminiClient struct {
	log          *slog.Logger
	client       client.Client
	geminiUrl    string
	geminiApiKey string
	model        string
}

func (g *geminiClient) endpoint(model string) (string, error) {
	u, err := url.Parse(fmt.Sprintf("%s/models/%s:generateContent", g.geminiUrl, url.PathEscape(model)))
	if err != nil {
		return "", errors.Wrapf(err, "invalid gemini url %q", g.geminiUrl)
	}
	q := u.Query()
	q.Set("key", g.geminiApiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *geminiClient) Generate(ctx context.Context, request GenerateRequest) (*GenerateResponse, error) {
	req, err := NewRequest(request.Prompt, lo.If(request.Model != "", request.Model).Else(g.model))
	if err != nil {
		return nil, err
	}
	endpoint, err := g.endpoint(req.Model())
	if err != nil {
		return nil, err
	}

	policy := client.DefaultRetryPolicy()
	if request.MaxAttempts > 0 {
		policy.MaxAttempts = request.MaxAttempts
	}
	if request.RetryCooldown > 0 {
		policy.BaseDelay = request.RetryCooldown
	}
	policy.OnRetry = request.OnRetry

	g.log.Debug("generating content", "model", req.Model(), "maxAttempts", policy.MaxAttempts)
	res, err := g.client.Send(ctx, endpoint, dto.NewSearchGroundedRequest(req.Prompt()), policy)
	if err != nil {
		return nil, err
	}

	content, err := extract.Parse(res.Body)
	if err != nil {
		return nil, err
	}
	g.log.Debug("content generated", "model", req.Model(), "attempts", res.Attempts, "sources", len(content.Sources))
	return &GenerateResponse{
		Response: content.Format(),
		Text:     content.Text,
		Sources:  content.Sources,
		Attempts: res.Attempts,
	}, nil
}
