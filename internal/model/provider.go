package model

import (
	"fmt"
	"slices"
	"strings"
)

// Provider identifies the chat platform a transcript was exported from.
type Provider string

const (
	ProviderChatGPT Provider = "chatgpt"
	ProviderClaude  Provider = "claude"
	ProviderGemini  Provider = "gemini"
	ProviderCopilot Provider = "copilot"
)

var validProviders = []Provider{
	ProviderChatGPT,
	ProviderClaude,
	ProviderGemini,
	ProviderCopilot,
}

// Providers returns every known provider in display order.
func Providers() []Provider {
	return slices.Clone(validProviders)
}

// ValidateProvider returns an error if p is not a recognized provider.
func ValidateProvider(p Provider) error {
	if slices.Contains(validProviders, p) {
		return nil
	}
	return fmt.Errorf("invalid provider %q: must be one of %v", p, validProviders)
}

// ParseProvider accepts a provider name in any letter case, e.g. "ChatGPT".
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if err := ValidateProvider(p); err != nil {
		return "", err
	}
	return p, nil
}

// DisplayName returns the human-facing product name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderChatGPT:
		return "ChatGPT"
	case ProviderClaude:
		return "Claude"
	case ProviderGemini:
		return "Gemini"
	case ProviderCopilot:
		return "Copilot"
	default:
		return string(p)
	}
}

// Color returns a color name string suitable for terminal rendering.
func (p Provider) Color() string {
	switch p {
	case ProviderChatGPT:
		return "green"
	case ProviderClaude:
		return "yellow"
	case ProviderGemini:
		return "blue"
	case ProviderCopilot:
		return "magenta"
	default:
		return "white"
	}
}
