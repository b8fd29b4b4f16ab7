package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to the OpenAI REST API for chat completions, speech and
// image synthesis.
type OpenAIProvider struct {
	keyName string
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type OpenAIOption func(*OpenAIProvider)

func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(o *OpenAIProvider) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithOpenAIKey(k string) OpenAIOption {
	return func(o *OpenAIProvider) { o.apiKey = k }
}

func NewOpenAIProvider(keyName, model string, timeout time.Duration, opts ...OpenAIOption) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = "gpt-3.5-turbo"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	o := &OpenAIProvider{
		keyName: keyName,
		apiKey:  resolveOpenAIKey(keyName),
		baseURL: openAIBaseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAIProvider) info(model string) ProviderInfo {
	return ProviderInfo{Name: "openai", Model: model, Key: o.keyName}
}

func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, ProviderInfo, error) {
	model := pick(req.Model, o.model)
	if o.apiKey == "" {
		return CompletionResponse{}, o.info(model), Wrap(req.Operation, "openai", fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	text, err := chatCompletion(ctx, o.client, o.baseURL+"/chat/completions", o.apiKey, model, req.Messages)
	if err != nil {
		return CompletionResponse{}, o.info(model), Wrap(req.Operation, "openai", err)
	}
	return CompletionResponse{Text: text}, o.info(model), nil
}

func (o *OpenAIProvider) Speech(ctx context.Context, req SpeechRequest) (Media, ProviderInfo, error) {
	model := pick(req.Model, "tts-1")
	if o.apiKey == "" {
		return Media{}, o.info(model), Wrap("speech", "openai", fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	payload, _ := json.Marshal(map[string]any{
		"model":           model,
		"input":           req.Input,
		"voice":           pick(req.Voice, "alloy"),
		"response_format": "mp3",
	})
	body, err := o.post(ctx, "/audio/speech", payload)
	if err != nil {
		return Media{}, o.info(model), Wrap("speech", "openai", fmt.Errorf("openai speech: %w", err))
	}
	if len(body) == 0 {
		return Media{}, o.info(model), Wrap("speech", "openai", fmt.Errorf("openai speech returned no audio"))
	}
	return Media{Data: body, ContentType: "audio/mpeg", Ext: ".mp3"}, o.info(model), nil
}

func (o *OpenAIProvider) Image(ctx context.Context, req ImageRequest) (Media, ProviderInfo, error) {
	model := pick(req.Model, "dall-e-3")
	if o.apiKey == "" {
		return Media{}, o.info(model), Wrap("image", "openai", fmt.Errorf("openai key missing for alias %q", o.keyName))
	}
	payload, _ := json.Marshal(map[string]any{
		"model":           model,
		"prompt":          req.Prompt,
		"n":               1,
		"size":            pick(req.Size, "1024x1024"),
		"response_format": "b64_json",
	})
	body, err := o.post(ctx, "/images/generations", payload)
	if err != nil {
		return Media{}, o.info(model), Wrap("image", "openai", fmt.Errorf("openai image: %w", err))
	}
	var parsed struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Media{}, o.info(model), Wrap("image", "openai", fmt.Errorf("decode image response: %w", err))
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return Media{}, o.info(model), Wrap("image", "openai", fmt.Errorf("openai returned no image"))
	}
	img, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return Media{}, o.info(model), Wrap("image", "openai", fmt.Errorf("decode image payload: %w", err))
	}
	return Media{Data: img, ContentType: "image/png", Ext: ".png"}, o.info(model), nil
}

func (o *OpenAIProvider) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// chatCompletion calls an OpenAI-compatible /chat/completions endpoint and
// returns the first choice's content.
func chatCompletion(ctx context.Context, client *http.Client, url, apiKey, model string, msgs []Message) (string, error) {
	if len(msgs) == 0 {
		return "", fmt.Errorf("no messages to send")
	}
	payload, _ := json.Marshal(map[string]any{
		"model":    model,
		"messages": msgs,
	})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("chat error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("provider returned empty choices")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("provider returned empty content")
	}
	return text, nil
}

func resolveOpenAIKey(alias string) string {
	if alias != "" {
		k := os.Getenv("OPENAI_API_KEY_" + strings.ToUpper(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("OPENAI_API_KEY")
}

func pick(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
