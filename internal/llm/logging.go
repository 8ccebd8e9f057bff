package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

const logSnippetLimit = 120

func providerLogger(ctx context.Context, provider, model string) *logrus.Entry {
	fields := logrus.Fields{
		"provider": provider,
	}
	if trimmedModel := strings.TrimSpace(model); trimmedModel != "" {
		fields["model"] = trimmedModel
	}

	entry := logrus.WithFields(fields)
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

// logProviderFailure 记录失败事件，ProviderError 会附带上游状态码。
func logProviderFailure(entry *logrus.Entry, event string, err error) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		entry = entry.WithField("upstream_status", providerErr.StatusCode)
	}
	entry.WithError(err).Warn(event)
}

func logSnippet(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	runes := []rune(value)
	if len(runes) <= logSnippetLimit {
		return value
	}

	return string(runes[:logSnippetLimit]) + "..."
}
