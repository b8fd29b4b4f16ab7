package providers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// MockProvider returns deterministic output that honours the heading
// conventions of each operation. It never talks to the network.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	digest := shortDigest(req.Messages)
	var text string
	switch strings.ToLower(req.Operation) {
	case "cv_analysis", "cv_analysis_mission":
		text = "**Compétences Analysées**\n- Réponse simulée.\n\n" +
			"**Résumé du profil**\nProfil simulé (" + digest + ").\n\n" +
			"**Adéquation au poste demandé**\nÀ confirmer avec un fournisseur réel.\n\n" +
			"**Compétences manquantes**\n- Aucune donnée réelle."
	case "legal_guidance":
		text = "**Orientation simulée** #Livre I# #Chapitre 1# #Section 1#\nRéponse déterministe (" + digest + ")."
	case "prompt_refinement":
		text = "**Prompt proposé**\nRéponse déterministe (" + digest + ")."
	default:
		text = "Réponse simulée (" + digest + ")."
	}
	return CompletionResponse{Text: text}, info, nil
}

func (m *MockProvider) Speech(ctx context.Context, req SpeechRequest) (Media, ProviderInfo, error) {
	_ = ctx
	// ID3 header followed by the input so repeated calls are reproducible.
	data := append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), []byte(req.Input)...)
	return Media{Data: data, ContentType: "audio/mpeg", Ext: ".mp3"}, ProviderInfo{Name: "mock", Model: "mock-tts-v1", Key: "mock"}, nil
}

func (m *MockProvider) Image(ctx context.Context, req ImageRequest) (Media, ProviderInfo, error) {
	_ = ctx
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte(req.Prompt)...)
	return Media{Data: data, ContentType: "image/png", Ext: ".png"}, ProviderInfo{Name: "mock", Model: "mock-image-v1", Key: "mock"}, nil
}

func shortDigest(msgs []Message) string {
	h := sha256.New()
	for _, m := range msgs {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
