package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"imagestudio/internal/utils"
)

const (
	openAIImageSize      = "1024x1024"
	openAIReferenceHint  = " (similar to the reference image)"
	maxProviderBodyBytes = 64 << 20
)

type openAIImageRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openAIImageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAI talks to the OpenAI images API.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	media      *MediaFetcher
}

func NewOpenAI(apiKey, baseURL, model string, httpClient *http.Client, media *MediaFetcher) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is not configured")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if media == nil {
		media = NewMediaFetcher(0)
	}
	return &OpenAI{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		model:      strings.TrimSpace(model),
		httpClient: httpClient,
		media:      media,
	}, nil
}

func (o *OpenAI) Name() string {
	return ProviderOpenAI
}

// Generate calls images/generations. The generations endpoint takes no image input,
// so a reference image only adds a hint to the prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt, referenceImageURL string) (*ImagePayload, error) {
	if strings.TrimSpace(referenceImageURL) != "" {
		prompt += openAIReferenceHint
	}
	logger := providerLogger(ctx, ProviderOpenAI, o.model)
	logger.WithField("prompt_preview", logSnippet(prompt)).Info("provider_generate_start")

	body, err := json.Marshal(openAIImageRequest{Model: o.model, Prompt: prompt, N: 1, Size: openAIImageSize})
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	payload, err := o.do(req)
	if err != nil {
		logProviderFailure(logger, "provider_generate_failed", err)
		return nil, err
	}
	logger.Info("provider_generate_done")
	return payload, nil
}

// Edit downloads the source image and posts it to images/edits as multipart form data.
func (o *OpenAI) Edit(ctx context.Context, sourceImage, instructions string) (*ImagePayload, error) {
	logger := providerLogger(ctx, ProviderOpenAI, o.model)
	logger.WithField("instructions_preview", logSnippet(instructions)).Info("provider_edit_start")

	source, err := o.media.Fetch(ctx, sourceImage)
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "load source image: %v", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	ext := utils.ExtensionFromMime(source.MimeType)
	if ext == "" {
		ext = "png"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="image.%s"`, ext))
	header.Set("Content-Type", source.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "build multipart body")
	}
	if _, err := part.Write(source.Data); err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "build multipart body")
	}
	fields := map[string]string{"prompt": instructions, "n": "1", "size": openAIImageSize}
	if o.model != "" {
		fields["model"] = o.model
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, providerFailure(ProviderOpenAI, 0, err, "build multipart body")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "build multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	payload, err := o.do(req)
	if err != nil {
		logProviderFailure(logger, "provider_edit_failed", err)
		return nil, err
	}
	logger.Info("provider_edit_done")
	return payload, nil
}

func (o *OpenAI) do(req *http.Request) (*ImagePayload, error) {
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, 0, err, "send request: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBodyBytes))
	if err != nil {
		return nil, providerFailure(ProviderOpenAI, resp.StatusCode, err, "read response: %v", err)
	}

	var decoded openAIImageResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		return nil, providerFailure(ProviderOpenAI, resp.StatusCode, nil, "%s", logSnippet(message))
	}
	if decodeErr != nil {
		return nil, providerFailure(ProviderOpenAI, resp.StatusCode, decodeErr, "malformed response body")
	}
	if len(decoded.Data) == 0 {
		return nil, providerFailure(ProviderOpenAI, resp.StatusCode, nil, "response contains no image")
	}

	first := decoded.Data[0]
	if url := strings.TrimSpace(first.URL); url != "" {
		return &ImagePayload{URL: url}, nil
	}
	if b64 := strings.TrimSpace(first.B64JSON); b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, providerFailure(ProviderOpenAI, resp.StatusCode, err, "malformed image data")
		}
		return &ImagePayload{Data: data, MimeType: utils.NormalizeMimeType(http.DetectContentType(data))}, nil
	}
	return nil, providerFailure(ProviderOpenAI, resp.StatusCode, nil, "response contains no image")
}

var _ Provider = (*OpenAI)(nil)
