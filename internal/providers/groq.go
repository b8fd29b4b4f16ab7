package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const groqChatURL = "https://api.groq.com/openai/v1/chat/completions"

// GroqProvider supports chat completions via Groq's OpenAI-compatible API.
type GroqProvider struct {
	keyName string
	apiKey  string
	url     string
	model   string
	client  *http.Client
}

func NewGroqProvider(keyName string, timeout time.Duration) *GroqProvider {
	model := os.Getenv("GROQ_MODEL")
	if strings.TrimSpace(model) == "" {
		model = "llama-3.1-8b-instant"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GroqProvider{
		keyName: keyName,
		apiKey:  resolveGroqKey(keyName),
		url:     groqChatURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

// Complete ignores req.Model: chat model names are OpenAI identifiers and
// Groq serves its own catalogue.
func (g *GroqProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "groq", Key: g.keyName, Model: g.model}
	if g.apiKey == "" {
		return CompletionResponse{}, info, Wrap(req.Operation, "groq", fmt.Errorf("groq key missing for alias %q", g.keyName))
	}
	text, err := chatCompletion(ctx, g.client, g.url, g.apiKey, g.model, req.Messages)
	if err != nil {
		return CompletionResponse{}, info, Wrap(req.Operation, "groq", err)
	}
	return CompletionResponse{Text: text}, info, nil
}

func resolveGroqKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("GROQ_API_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GROQ_API_KEY")
}
