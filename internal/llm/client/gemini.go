package llmclient

import (
	"context"
	"strings"

	genai "google.golang.org/genai"
)

// Gemini is a thin wrapper around the official genai client. It only
// focuses on the API call itself; retries, logging, and hooks are
// applied via middleware.
type Gemini struct {
	cli             *genai.Client
	model           string
	maxOutputTokens int32
}

func NewGemini(ctx context.Context, apiKey, model string, maxOutputTokens int) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = 2000
	}
	return &Gemini{cli: cli, model: model, maxOutputTokens: int32(maxOutputTokens)}, nil
}

func (g *Gemini) Name() string { return "Gemini:" + g.model }
func (g *Gemini) Close() error { return nil }

// GenerateJSON asks for application/json output with the system prompt
// as a system instruction. Providers reject config fields unevenly, so
// on an invalid-argument error the call is retried with progressively
// smaller configs before giving up.
func (g *Gemini) GenerateJSON(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: user}}}}
	sys := &genai.Content{Parts: []*genai.Part{{Text: system}}}

	configs := []*genai.GenerateContentConfig{
		{
			SystemInstruction: sys,
			ResponseMIMEType:  "application/json",
			MaxOutputTokens:   g.maxOutputTokens,
		},
		{
			SystemInstruction: sys,
			ResponseMIMEType:  "application/json",
		},
		{SystemInstruction: sys},
	}

	var lastErr error
	for i, cfg := range configs {
		resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			lastErr = err
			if i < len(configs)-1 && isInvalidArgument(err) {
				continue
			}
			return "", err
		}
		return firstText(resp)
	}
	return "", lastErr
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	c := resp.Candidates[0]
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return c.Content.Parts[0].Text, nil
}

func isInvalidArgument(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "invalid_argument") || strings.Contains(s, "invalid argument") ||
		strings.Contains(s, "unknown field") || strings.Contains(s, "unexpected keyword")
}
