package repository

import (
	"context"
	"errors"
	"time"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// GetActiveByToken 查询token的活跃挂单，不存在返回nil
func (r *ListingRepository) GetActiveByToken(ctx context.Context, chainID string, tokenID uint64) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND token_id = ? AND status = ?", chainID, tokenID, models.ListingStatusActive).
		First(&listing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &listing, err
}

// Close 把token的活跃挂单置为终态
func (r *ListingRepository) Close(ctx context.Context, chainID string, tokenID uint64, status models.ListingStatus, closedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("chain_id = ? AND token_id = ? AND status = ?", chainID, tokenID, models.ListingStatusActive).
		Updates(map[string]interface{}{
			"status":    status,
			"closed_at": closedAt,
		}).Error
}

// GetActivePaginated 分页查询活跃挂单
func (r *ListingRepository) GetActivePaginated(ctx context.Context, chainID string, offset, limit int) ([]models.Listing, error) {
	var listings []models.Listing
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND status = ?", chainID, models.ListingStatusActive).
		Order("token_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&listings).Error
	return listings, err
}

func (r *ListingRepository) CountActive(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("chain_id = ? AND status = ?", chainID, models.ListingStatusActive).
		Count(&count).Error
	return count, err
}
