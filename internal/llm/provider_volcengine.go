package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"imagestudio/internal/utils"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

//文档:https://www.volcengine.com/docs/82379/1824121

const (
	volcEventPartialSucceeded = "image_generation.partial_succeeded"
	volcEventPartialFailed    = "image_generation.partial_failed"
	volcEventCompleted        = "image_generation.completed"
)

// Volcengine 通过方舟 SDK 的流式接口生成/编辑图片，结果为 24 小时有效的下载链接。
type Volcengine struct {
	client *arkruntime.Client
	model  string
	media  *MediaFetcher
}

func NewVolcengine(apiKey, model string, media *MediaFetcher) (*Volcengine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	if strings.TrimSpace(model) == "" {
		model = "doubao-seedream-4-0-250828"
	}
	if media == nil {
		media = NewMediaFetcher(0)
	}
	return &Volcengine{
		client: arkruntime.NewClientWithApiKey(strings.TrimSpace(apiKey)),
		model:  strings.TrimSpace(model),
		media:  media,
	}, nil
}

func (v *Volcengine) Name() string {
	return ProviderVolcengine
}

func (v *Volcengine) Generate(ctx context.Context, prompt, referenceImageURL string) (*ImagePayload, error) {
	logger := providerLogger(ctx, ProviderVolcengine, v.model)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(prompt),
		"has_reference":  strings.TrimSpace(referenceImageURL) != "",
	}).Info("provider_generate_start")

	var images []string
	if ref := strings.TrimSpace(referenceImageURL); ref != "" {
		images = append(images, ref)
	}

	payload, err := v.stream(ctx, logger, prompt, images)
	if err != nil {
		logProviderFailure(logger, "provider_generate_failed", err)
		return nil, err
	}
	logger.Info("provider_generate_done")
	return payload, nil
}

// Edit 把原图作为参考图传入，seedream 支持 URL 或 data URL。
func (v *Volcengine) Edit(ctx context.Context, sourceImage, instructions string) (*ImagePayload, error) {
	logger := providerLogger(ctx, ProviderVolcengine, v.model)
	logger.WithField("instructions_preview", logSnippet(instructions)).Info("provider_edit_start")

	image := strings.TrimSpace(sourceImage)
	if !strings.HasPrefix(image, "data:") && !utils.IsRemoteURL(image) {
		source, err := v.media.Fetch(ctx, image)
		if err != nil {
			return nil, providerFailure(ProviderVolcengine, 0, err, "load source image: %v", err)
		}
		image = utils.BuildDataURL(source.MimeType, source.Data)
	}

	payload, err := v.stream(ctx, logger, instructions, []string{image})
	if err != nil {
		logProviderFailure(logger, "provider_edit_failed", err)
		return nil, err
	}
	logger.Info("provider_edit_done")
	return payload, nil
}

func (v *Volcengine) stream(ctx context.Context, logger *logrus.Entry, prompt string, images []string) (*ImagePayload, error) {
	var sequential volcModel.SequentialImageGeneration = "disabled"
	req := volcModel.GenerateImagesRequest{
		Model:                     v.model,
		Prompt:                    prompt,
		Image:                     images,
		Size:                      volcengine.String("2K"),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequential,
	}

	stream, err := v.client.GenerateImagesStreaming(ctx, req)
	if err != nil {
		return nil, providerFailure(ProviderVolcengine, volcStatusCode(err), err, "start stream: %v", err)
	}
	defer stream.Close()

	var (
		imageURL string
		failure  string
	)
	for {
		recv, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, providerFailure(ProviderVolcengine, volcStatusCode(err), err, "read stream: %v", err)
		}

		switch recv.Type {
		case volcEventPartialSucceeded:
			if recv.Error == nil && recv.Url != nil && imageURL == "" {
				imageURL = strings.TrimSpace(*recv.Url)
				logger.WithField("size", recv.Size).Debug("volcengine_image_received")
			}
		case volcEventPartialFailed:
			if recv.Error != nil {
				failure = recv.Error.Message
				logger.WithFields(logrus.Fields{
					"code":    recv.Error.Code,
					"message": recv.Error.Message,
				}).Warn("volcengine_image_failed")
				if strings.EqualFold(recv.Error.Code, "InternalServiceError") {
					return nil, providerFailure(ProviderVolcengine, 0, nil, "%s", failure)
				}
			}
		case volcEventCompleted:
			logger.Debug("volcengine_stream_completed")
		}
	}

	if imageURL == "" {
		if failure != "" {
			return nil, providerFailure(ProviderVolcengine, 0, nil, "%s", failure)
		}
		return nil, providerFailure(ProviderVolcengine, 0, nil, "response contains no image")
	}
	return &ImagePayload{URL: imageURL}, nil
}

func volcStatusCode(err error) int {
	var apiErr *volcModel.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *volcModel.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

var _ Provider = (*Volcengine)(nil)
