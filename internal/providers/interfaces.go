package providers

import "context"

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// CompletionRequest is sent as-is: Messages keep their order, system first.
type CompletionRequest struct {
	Operation string    `json:"operation"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
}

type CompletionResponse struct {
	Text string `json:"text"`
}

type SpeechRequest struct {
	Input string
	Voice string
	Model string
}

type ImageRequest struct {
	Prompt string
	Size   string
	Model  string
}

// Media is a synthesized binary artifact.
type Media struct {
	Data        []byte
	ContentType string
	Ext         string
}

type ChatProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, ProviderInfo, error)
}

type SpeechProvider interface {
	Speech(ctx context.Context, req SpeechRequest) (Media, ProviderInfo, error)
}

type ImageProvider interface {
	Image(ctx context.Context, req ImageRequest) (Media, ProviderInfo, error)
}
