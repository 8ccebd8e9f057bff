package llm

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"imagestudio/internal/config"
)

// NewProvider returns the provider selected by cfg.ImageProvider.
func NewProvider(cfg config.Config) (Provider, error) {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	media := NewMediaFetcher(timeout)

	switch strings.ToLower(strings.TrimSpace(cfg.ImageProvider)) {
	case "", ProviderOpenAI:
		provider, err := NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIImageModel, httpClient, media)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ProviderGemini:
		provider, err := NewGemini(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiImageModel, httpClient, media)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case ProviderVolcengine:
		provider, err := NewVolcengine(cfg.VolcengineAPIKey, cfg.VolcengineImageModel, media)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported image provider: %s", cfg.ImageProvider)
	}
}
