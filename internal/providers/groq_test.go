package providers

import (
	"context"
	"testing"
)

func TestGroqMissingKeyIsAuthError(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("GROQ_API_KEY_ALIAS1", "")
	p := NewGroqProvider("alias1", 0)
	_, info, err := p.Complete(context.Background(), CompletionRequest{Operation: "legal_guidance"})
	if err == nil {
		t.Fatalf("expected error without key")
	}
	if info.Name != "groq" {
		t.Fatalf("unexpected info: %+v", info)
	}
	pe, ok := err.(*ProviderError)
	if !ok || pe.Kind != ErrorAuth {
		t.Fatalf("expected auth provider error, got %#v", err)
	}
}

func TestResolveGroqKeyAlias(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "default")
	t.Setenv("GROQ_API_KEY_BACKUP", "aliased")
	if got := resolveGroqKey("backup"); got != "aliased" {
		t.Fatalf("expected aliased key, got %q", got)
	}
	if got := resolveGroqKey(""); got != "default" {
		t.Fatalf("expected default key, got %q", got)
	}
}
