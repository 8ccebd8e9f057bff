package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderVolcengine = "volcengine"
)

// ImagePayload is a provider result: either inline bytes or a remote URL.
type ImagePayload struct {
	URL      string
	Data     []byte
	MimeType string
}

// IsRemote reports whether the payload points at a remote URL.
func (p *ImagePayload) IsRemote() bool {
	return p != nil && strings.TrimSpace(p.URL) != "" && len(p.Data) == 0
}

// Provider generates and edits images through one external API.
type Provider interface {
	Name() string
	// Generate creates an image from prompt. referenceImageURL may be empty.
	Generate(ctx context.Context, prompt, referenceImageURL string) (*ImagePayload, error)
	// Edit applies instructions to sourceImage, a URL or a data URL.
	Edit(ctx context.Context, sourceImage, instructions string) (*ImagePayload, error)
}

// ProviderError wraps every failure of a provider call.
// StatusCode is zero when the failure happened before a response arrived.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// HTTPStatus is the status to record for the failed call. A 2xx response whose
// body held no usable image is still a failure and maps to 502.
func (e *ProviderError) HTTPStatus() int {
	if e == nil || e.StatusCode < http.StatusBadRequest {
		return http.StatusBadGateway
	}
	return e.StatusCode
}

func providerFailure(provider string, status int, err error, format string, args ...interface{}) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
		Err:        err,
	}
}
