package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"imagestudio/internal/entity"
	"imagestudio/internal/llm"
	"imagestudio/internal/prompt"
	"imagestudio/internal/realtime"
	"imagestudio/internal/usage"
	"imagestudio/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	EndpointGenerateImage = "generate_image"
	EndpointEditImage     = "edit_image"
)

// UsageTracker 是生成流程依赖的额度与日志能力，由 usage.Tracker 实现。
type UsageTracker interface {
	CheckQuota(ctx context.Context, userID string, kind entity.UsageKind) bool
	RecordRequest(ctx context.Context, entry usage.RequestLog)
	IncrementUsage(ctx context.Context, userID string, kind entity.UsageKind)
}

// ImageStore 图片表读写。
type ImageStore interface {
	CreateImage(ctx context.Context, image *entity.DbImage) error
	GetImage(ctx context.Context, userID, id string) (*entity.DbImage, error)
	FindImageByURL(ctx context.Context, userID, url string) (*entity.DbImage, error)
	ListImages(ctx context.Context, params *entity.ImageQuery) ([]entity.DbImage, *entity.Meta, error)
}

// RequestMeta 是写入请求日志的客户端信息。
type RequestMeta struct {
	UserAgent string
	IPAddress string
}

type GenerateInput struct {
	UserID  string
	Request entity.GenerateImageRequest
	Meta    RequestMeta
}

type EditInput struct {
	UserID  string
	Request entity.EditImageRequest
	Meta    RequestMeta
}

// StudioService 串起提示词、额度、provider、存储和记账，各步骤严格顺序执行。
type StudioService struct {
	provider  llm.Provider
	persister *MediaPersister
	images    ImageStore
	tracker   UsageTracker
	notifier  realtime.Notifier
	now       func() time.Time
}

func NewStudioService(provider llm.Provider, persister *MediaPersister, images ImageStore, tracker UsageTracker, notifier realtime.Notifier) *StudioService {
	if notifier == nil {
		notifier = realtime.Nop{}
	}
	return &StudioService{
		provider:  provider,
		persister: persister,
		images:    images,
		tracker:   tracker,
		notifier:  notifier,
		now:       time.Now,
	}
}

// ProviderName 当前启用的 provider。
func (s *StudioService) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

// Generate 生成一张图片并保存记录。
func (s *StudioService) Generate(ctx context.Context, in GenerateInput) (*entity.DbImage, error) {
	req := in.Request
	composed, err := prompt.Compose(req.Prompt, req.StyleCategory, req.Style, req.CustomStyle, req.ReferenceTitle)
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(req.ReferenceImageURL)
	if err := checkImageURL("reference_image_url", reference); err != nil {
		return nil, err
	}

	style := strings.TrimSpace(req.Style)
	if strings.TrimSpace(req.StyleCategory) == prompt.CategoryCustom {
		style = prompt.CategoryCustom
	}

	logger := logrus.WithFields(logrus.Fields{
		"user_id":  in.UserID,
		"style":    style,
		"provider": s.ProviderName(),
	})
	logger.Info("image_generate_start")

	image := &entity.DbImage{
		UserID: in.UserID,
		Prompt: &composed,
		Style:  &style,
	}
	err = s.run(ctx, in.UserID, in.Meta, EndpointGenerateImage, entity.UsageGenerate, image, func(ctx context.Context) (*llm.ImagePayload, error) {
		return s.provider.Generate(ctx, composed, reference)
	})
	if err != nil {
		logger.WithError(err).Warn("image_generate_failed")
		return nil, err
	}
	logger.WithField("image_id", image.ID).Info("image_generate_done")
	return image, nil
}

// Edit 按编辑指令修改图片，原图属于该用户时记录来源。
func (s *StudioService) Edit(ctx context.Context, in EditInput) (*entity.DbImage, error) {
	req := in.Request
	source := strings.TrimSpace(req.SourceImage)
	if source == "" {
		return nil, &prompt.ValidationError{Field: "source_image", Message: "please choose an image to edit"}
	}
	if err := checkImageURL("source_image", source); err != nil {
		return nil, err
	}
	instructions, err := prompt.EditInstruction(req.EditType, req.Option, req.CustomInstructions)
	if err != nil {
		return nil, err
	}

	logger := logrus.WithFields(logrus.Fields{
		"user_id":   in.UserID,
		"edit_type": req.EditType,
		"provider":  s.ProviderName(),
	})
	logger.Info("image_edit_start")

	image := &entity.DbImage{
		UserID:           in.UserID,
		IsEdited:         true,
		EditInstructions: &instructions,
	}
	err = s.run(ctx, in.UserID, in.Meta, EndpointEditImage, entity.UsageEdit, image, func(ctx context.Context) (*llm.ImagePayload, error) {
		image.OriginalImageID = s.lookupOriginal(ctx, in.UserID, source)
		return s.provider.Edit(ctx, source, instructions)
	})
	if err != nil {
		logger.WithError(err).Warn("image_edit_failed")
		return nil, err
	}
	logger.WithField("image_id", image.ID).Info("image_edit_done")
	return image, nil
}

// run 执行额度检查后的公共流程，无论成功失败都只写一条请求日志。
func (s *StudioService) run(ctx context.Context, userID string, meta RequestMeta, endpoint string, kind entity.UsageKind, image *entity.DbImage, call func(ctx context.Context) (*llm.ImagePayload, error)) error {
	started := s.now()
	status := http.StatusOK
	defer func() {
		s.tracker.RecordRequest(ctx, usage.RequestLog{
			UserID:    userID,
			Endpoint:  endpoint,
			StartedAt: started,
			Status:    status,
			UserAgent: meta.UserAgent,
			IPAddress: meta.IPAddress,
		})
	}()

	if !s.tracker.CheckQuota(ctx, userID, kind) {
		status = http.StatusTooManyRequests
		return &QuotaExceededError{UserID: userID, Kind: string(kind)}
	}

	payload, err := call(ctx)
	if err != nil {
		status = statusOf(err)
		return err
	}

	url, err := s.persister.Persist(ctx, userID, payload)
	if err != nil {
		status = http.StatusInternalServerError
		return err
	}

	image.ID = uuid.NewString()
	image.URL = url
	image.CreatedAt = s.now()
	if err := s.images.CreateImage(ctx, image); err != nil {
		status = http.StatusInternalServerError
		return &StorageError{Op: "save image", Err: err}
	}

	s.tracker.IncrementUsage(ctx, userID, kind)
	s.notifier.Publish(ctx, realtime.Event{UserID: userID, Topic: realtime.TopicImage, Payload: image})
	return nil
}

func (s *StudioService) lookupOriginal(ctx context.Context, userID, source string) *string {
	if !utils.IsRemoteURL(source) {
		return nil
	}
	original, err := s.images.FindImageByURL(ctx, userID, source)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithError(err).WithField("user_id", userID).Warn("image_lineage_lookup_failed")
		}
		return nil
	}
	id := original.ID
	return &id
}

// Get 读取用户自己的图片。
func (s *StudioService) Get(ctx context.Context, userID, id string) (*entity.DbImage, error) {
	return s.images.GetImage(ctx, userID, id)
}

// List 按时间倒序分页列出用户图片。
func (s *StudioService) List(ctx context.Context, query *entity.ImageQuery) ([]entity.DbImage, *entity.Meta, error) {
	query.Normalize()
	query.Filter = strings.ToLower(strings.TrimSpace(query.Filter))
	switch query.Filter {
	case "", entity.ImageFilterAll, entity.ImageFilterGenerated, entity.ImageFilterEdited:
	default:
		return nil, nil, &prompt.ValidationError{Field: "filter", Message: "filter must be all, generated or edited"}
	}
	return s.images.ListImages(ctx, query)
}

func statusOf(err error) int {
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.HTTPStatus()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// checkImageURL 拒绝指向内网或回环地址的远程图片，data URL 和 base64 不受影响。
func checkImageURL(field, value string) error {
	if !utils.IsRemoteURL(value) {
		return nil
	}
	if err := utils.CheckPublicURL(value); err != nil {
		return &prompt.ValidationError{Field: field, Message: "image url must point to a public http(s) address"}
	}
	return nil
}
