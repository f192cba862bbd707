package llm

import (
	"fmt"

	"NewsPoster/internal/config"
	"NewsPoster/internal/ports"
)

// New picks the provider named in cfg and wraps it with the rate limiter.
func New(cfg config.GenerationConfig) (ports.Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation api key is not configured")
	}

	var base ports.Completer
	switch cfg.Provider {
	case "", "openai":
		base = NewChatGPTClient(cfg)
	case "anthropic":
		base = NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
	return NewLimited(base, cfg.RequestsPerMinute), nil
}
