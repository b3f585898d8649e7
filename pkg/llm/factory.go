package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quickcommerce/deals-engine/pkg/config"
)

// NewGenerator creates the configured SQL generation client. Returns
// (nil, nil) when no provider is configured; the engine then serves every
// request from the template fallback.
func NewGenerator(cfg *config.LLMConfig, logger *zap.Logger) (SQLGenerator, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAIClient(&OpenAIConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.APIKey, cfg.Model, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
