package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
)

type (
	geminiInlineData struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	}
	geminiPart struct {
		Text       string            `json:"text,omitempty"`
		InlineData *geminiInlineData `json:"inlineData,omitempty"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiGenerationConfig struct {
		Temperature     float64 `json:"temperature"`
		TopK            int     `json:"topK"`
		TopP            float64 `json:"topP"`
		MaxOutputTokens int     `json:"maxOutputTokens"`
	}
	geminiRequest struct {
		Contents         []geminiContent        `json:"contents"`
		GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	}
)

type (
	geminiCandidate struct {
		FinishReason string        `json:"finishReason,omitempty"`
		Content      geminiContent `json:"content"`
	}
	geminiResponse struct {
		Candidates []geminiCandidate `json:"candidates"`
		Error      *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}
)

var defaultGeminiGenerationConfig = geminiGenerationConfig{
	Temperature:     0.4,
	TopK:            32,
	TopP:            1,
	MaxOutputTokens: 4096,
}

// Gemini calls models/{model}:generateContent and reads the first inline image part.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	media      *MediaFetcher
}

func NewGemini(apiKey, baseURL, model string, httpClient *http.Client, media *MediaFetcher) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("gemini image model is not configured")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if media == nil {
		media = NewMediaFetcher(0)
	}
	return &Gemini{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      strings.TrimSpace(model),
		httpClient: httpClient,
		media:      media,
	}, nil
}

func (g *Gemini) Name() string {
	return ProviderGemini
}

func (g *Gemini) Generate(ctx context.Context, prompt, referenceImageURL string) (*ImagePayload, error) {
	logger := providerLogger(ctx, ProviderGemini, g.model)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(prompt),
		"has_reference":  strings.TrimSpace(referenceImageURL) != "",
	}).Info("provider_generate_start")

	parts := []geminiPart{{Text: prompt}}
	if strings.TrimSpace(referenceImageURL) != "" {
		// 参考图拉取失败时只降级为纯文本生成。
		ref, err := g.media.Fetch(ctx, referenceImageURL)
		if err != nil {
			logger.WithError(err).Warn("provider_reference_image_skipped")
		} else {
			parts = append(parts, inlinePart(ref))
		}
	}

	payload, err := g.generateContent(ctx, parts)
	if err != nil {
		logProviderFailure(logger, "provider_generate_failed", err)
		return nil, err
	}
	logger.Info("provider_generate_done")
	return payload, nil
}

func (g *Gemini) Edit(ctx context.Context, sourceImage, instructions string) (*ImagePayload, error) {
	logger := providerLogger(ctx, ProviderGemini, g.model)
	logger.WithField("instructions_preview", logSnippet(instructions)).Info("provider_edit_start")

	source, err := g.media.Fetch(ctx, sourceImage)
	if err != nil {
		return nil, providerFailure(ProviderGemini, 0, err, "load source image: %v", err)
	}

	payload, err := g.generateContent(ctx, []geminiPart{{Text: instructions}, inlinePart(source)})
	if err != nil {
		logProviderFailure(logger, "provider_edit_failed", err)
		return nil, err
	}
	logger.Info("provider_edit_done")
	return payload, nil
}

func (g *Gemini) generateContent(ctx context.Context, parts []geminiPart) (*ImagePayload, error) {
	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: defaultGeminiGenerationConfig,
	})
	if err != nil {
		return nil, providerFailure(ProviderGemini, 0, err, "marshal request")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, providerFailure(ProviderGemini, 0, err, "create request")
	}
	// key 放在 header 里，避免出现在日志的 URL 中
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, providerFailure(ProviderGemini, 0, err, "send request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return nil, providerFailure(ProviderGemini, resp.StatusCode, err, "read response: %v", err)
	}

	var decoded geminiResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return nil, providerFailure(ProviderGemini, resp.StatusCode, nil, "%s", logSnippet(message))
	}
	if decodeErr != nil {
		return nil, providerFailure(ProviderGemini, resp.StatusCode, decodeErr, "malformed response body")
	}

	var text string
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && strings.TrimSpace(part.InlineData.Data) != "" {
				data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(part.InlineData.Data))
				if err != nil {
					return nil, providerFailure(ProviderGemini, resp.StatusCode, err, "malformed image data")
				}
				mimeType := part.InlineData.MimeType
				if strings.TrimSpace(mimeType) == "" {
					mimeType = http.DetectContentType(data)
				}
				return &ImagePayload{Data: data, MimeType: utils.NormalizeMimeType(mimeType)}, nil
			}
			if text == "" && strings.TrimSpace(part.Text) != "" {
				text = part.Text
			}
		}
	}

	if text != "" {
		return nil, providerFailure(ProviderGemini, resp.StatusCode, nil, "response contains no image: %s", logSnippet(text))
	}
	return nil, providerFailure(ProviderGemini, resp.StatusCode, nil, "response contains no image")
}

func inlinePart(img *SourceImage) geminiPart {
	return geminiPart{InlineData: &geminiInlineData{
		MimeType: img.MimeType,
		Data:     base64.StdEncoding.EncodeToString(img.Data),
	}}
}

var _ Provider = (*Gemini)(nil)
