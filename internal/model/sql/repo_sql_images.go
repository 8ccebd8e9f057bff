package sql

import (
	"context"
	"fmt"
	"strings"

	"imagestudio/internal/entity"
)

// CreateImage inserts a new image row.
func (r *GormRepository) CreateImage(ctx context.Context, image *entity.DbImage) error {
	if err := r.ready(); err != nil {
		return err
	}
	if image == nil {
		return fmt.Errorf("image is nil")
	}
	return r.db.WithContext(ctx).Create(image).Error
}

// GetImage loads one image owned by the user.
func (r *GormRepository) GetImage(ctx context.Context, userID, id string) (*entity.DbImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var image entity.DbImage
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

// FindImageByURL returns the newest image of the user stored at url.
func (r *GormRepository) FindImageByURL(ctx context.Context, userID, url string) (*entity.DbImage, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(url)
	if trimmed == "" {
		return nil, fmt.Errorf("url is empty")
	}
	var image entity.DbImage
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND url = ?", userID, trimmed).
		Order("created_at DESC").
		First(&image).Error; err != nil {
		return nil, err
	}
	return &image, nil
}

// ListImages returns a page of the user's images, newest first.
func (r *GormRepository) ListImages(ctx context.Context, params *entity.ImageQuery) ([]entity.DbImage, *entity.Meta, error) {
	if err := r.ready(); err != nil {
		return nil, nil, err
	}
	if params == nil || strings.TrimSpace(params.UserID) == "" {
		return nil, nil, fmt.Errorf("user id is required")
	}

	query := r.db.WithContext(ctx).Model(&entity.DbImage{}).Where("user_id = ?", params.UserID)
	switch strings.ToLower(strings.TrimSpace(params.Filter)) {
	case entity.ImageFilterGenerated:
		query = query.Where("is_edited = ?", false)
	case entity.ImageFilterEdited:
		query = query.Where("is_edited = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, err
	}

	page := 1
	pageSize := 20
	if params.Page > 0 {
		page = int(params.Page)
	}
	if params.PageSize > 0 {
		pageSize = int(params.PageSize)
	}
	offset := (page - 1) * pageSize

	var images []entity.DbImage
	if err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&images).Error; err != nil {
		return nil, nil, err
	}

	return images, r.calculatePagination(total, page, pageSize), nil
}
