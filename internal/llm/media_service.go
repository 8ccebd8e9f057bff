package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
)

// maxSourceImageBytes caps downloads of source and reference images.
const maxSourceImageBytes = 20 << 20

// SourceImage is a decoded input image.
type SourceImage struct {
	Data     []byte
	MimeType string
	URL      string
}

// MediaFetcher resolves image inputs given as URL, data URL or bare base64.
type MediaFetcher struct {
	httpClient *http.Client
}

// NewMediaFetcher creates a MediaFetcher whose downloads may only reach public
// addresses. A non-positive timeout means 30s.
func NewMediaFetcher(timeout time.Duration) *MediaFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MediaFetcher{httpClient: utils.NewPublicHTTPClient(timeout)}
}

// Fetch downloads or decodes input.
func (f *MediaFetcher) Fetch(ctx context.Context, input string) (*SourceImage, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, errors.New("empty image input")
	}
	if utils.IsRemoteURL(trimmed) {
		return f.download(ctx, trimmed)
	}

	data, mimeType, err := utils.DecodeMediaPayload(trimmed)
	if err != nil {
		return nil, err
	}
	return &SourceImage{Data: data, MimeType: mimeType}, nil
}

func (f *MediaFetcher) download(ctx context.Context, url string) (*SourceImage, error) {
	if err := utils.CheckPublicURL(url); err != nil {
		return nil, fmt.Errorf("refuse image url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) > maxSourceImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxSourceImageBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("downloaded image is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if utils.ExtensionFromMime(mimeType) == "" {
		mimeType = http.DetectContentType(data)
	}
	mimeType = utils.NormalizeMimeType(mimeType)

	logrus.WithFields(logrus.Fields{
		"mime":       mimeType,
		"size_bytes": len(data),
		"url":        logSnippet(url),
	}).Debug("media_fetch_downloaded")

	return &SourceImage{Data: data, MimeType: mimeType, URL: url}, nil
}
