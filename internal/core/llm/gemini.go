package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini streams completions from the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator for the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, gctx Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := make([]*genai.Content, 0, len(gctx.History)+1)
		for _, turn := range gctx.History {
			role := genai.Role(genai.RoleUser)
			if turn.Role == RoleModel {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(turn.Text, role))
		}
		contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

		cfg := &genai.GenerateContentConfig{}
		if gctx.System != "" {
			cfg.SystemInstruction = genai.NewContentFromText(gctx.System, genai.RoleUser)
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
