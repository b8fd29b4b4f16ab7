package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cvlex/internal/config"
)

// Manager owns the configured providers. LLM_PROVIDERS names the single
// completion gateway; media synthesis uses MEDIA_PROVIDER.
type Manager struct {
	chatRef ProviderRef
	chat    ChatProvider
	speech  SpeechProvider
	image   ImageProvider
}

func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	timeout := time.Duration(cfg.ProviderTimeout) * time.Second

	chatRef, err := ParseProviderRef(cfg.LLMProviders)
	if err != nil {
		return nil, fmt.Errorf("LLM_PROVIDERS: %w", err)
	}
	p, err := buildProvider(ctx, chatRef, cfg.ChatModel, timeout)
	if err != nil {
		return nil, err
	}
	chat, ok := p.(ChatProvider)
	if !ok {
		return nil, fmt.Errorf("provider %s does not support chat", chatRef.Raw)
	}

	mediaRef, err := ParseProviderRef(cfg.MediaProvider)
	if err != nil {
		return nil, fmt.Errorf("MEDIA_PROVIDER: %w", err)
	}
	if mediaRef != chatRef {
		if p, err = buildProvider(ctx, mediaRef, cfg.ChatModel, timeout); err != nil {
			return nil, err
		}
	}
	speech, okS := p.(SpeechProvider)
	image, okI := p.(ImageProvider)
	if !okS || !okI {
		return nil, fmt.Errorf("provider %s does not support media synthesis", mediaRef.Raw)
	}
	return &Manager{chatRef: chatRef, chat: chat, speech: speech, image: image}, nil
}

// NewStaticManager wires explicit providers, bypassing configuration.
func NewStaticManager(chat ChatProvider, speech SpeechProvider, image ImageProvider) *Manager {
	return &Manager{
		chatRef: ProviderRef{Raw: "static", Name: "static"},
		chat:    chat,
		speech:  speech,
		image:   image,
	}
}

func (m *Manager) Chat() ChatProvider { return m.chat }

func (m *Manager) ChatRef() ProviderRef { return m.chatRef }

func (m *Manager) Speech() SpeechProvider { return m.speech }

func (m *Manager) Image() ImageProvider { return m.image }

func buildProvider(ctx context.Context, ref ProviderRef, chatModel string, timeout time.Duration) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, chatModel, timeout), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, timeout), nil
	case "gemini":
		return NewGeminiProvider(ctx, ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
