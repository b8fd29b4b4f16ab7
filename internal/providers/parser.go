package providers

import (
	"fmt"
	"strings"
)

// ProviderRef names a provider and, optionally, the env var holding its key.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderRef reads "name" or "name:KEY_ENV". An empty value selects the
// mock provider. Only one provider may be named.
func ParseProviderRef(raw string) (ProviderRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ProviderRef{Raw: "mock", Name: "mock"}, nil
	}
	if strings.ContainsAny(raw, "|,") {
		return ProviderRef{}, fmt.Errorf("provider %q: only one provider can be configured", raw)
	}
	ref := ProviderRef{Raw: raw, Name: raw}
	if name, alias, ok := strings.Cut(raw, ":"); ok {
		ref.Name = strings.TrimSpace(name)
		ref.KeyAlias = strings.TrimSpace(alias)
	}
	if ref.Name == "" {
		return ProviderRef{}, fmt.Errorf("provider %q: missing name", raw)
	}
	return ref, nil
}
