package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider serves chat completions through the Gemini API. System
// messages become the system instruction; user messages are sent in order.
type GeminiProvider struct {
	keyName string
	model   string
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(ctx context.Context, keyName string) *GeminiProvider {
	model := os.Getenv("GEMINI_MODEL")
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	g := &GeminiProvider{keyName: keyName, model: model}
	apiKey := resolveGeminiKey(keyName)
	if apiKey == "" {
		g.initErr = fmt.Errorf("gemini key missing for alias %q", keyName)
		return g
	}
	g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	return g
}

func (g *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Key: g.keyName, Model: g.model}
	if g.initErr != nil {
		return CompletionResponse{}, info, Wrap(req.Operation, "gemini", g.initErr)
	}
	system, contents := toGeminiContents(req.Messages)
	if len(contents) == 0 {
		return CompletionResponse{}, info, Wrap(req.Operation, "gemini", fmt.Errorf("no user messages to send"))
	}
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return CompletionResponse{}, info, Wrap(req.Operation, "gemini", fmt.Errorf("gemini generate: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return CompletionResponse{}, info, Wrap(req.Operation, "gemini", fmt.Errorf("gemini returned no candidates"))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return CompletionResponse{}, info, Wrap(req.Operation, "gemini", fmt.Errorf("gemini returned empty content"))
	}
	return CompletionResponse{Text: text}, info, nil
}

func toGeminiContents(msgs []Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	return strings.Join(system, "\n\n"), contents
}

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("GOOGLE_API_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GOOGLE_API_KEY")
}
