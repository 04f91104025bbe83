package repository

import (
	"context"
	"errors"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByAddress 查询用户，不存在返回nil
func (r *UserRepository) GetByAddress(ctx context.Context, chainID, address string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND address = ?", chainID, address).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}
