package repository

import (
	"context"
	"errors"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// GetByTokenID 查询NFT，不存在返回nil
func (r *TokenRepository) GetByTokenID(ctx context.Context, chainID string, tokenID uint64) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND token_id = ?", chainID, tokenID).
		First(&token).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &token, err
}

func (r *TokenRepository) Create(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// Upsert 更新或创建NFT镜像记录
func (r *TokenRepository) Upsert(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("chain_id = ? AND token_id = ?", token.ChainID, token.TokenID).
			Assign(map[string]interface{}{
				"owner":        token.Owner,
				"grade":        token.Grade,
				"score":        token.Score,
				"endorsements": token.Endorsements,
				"theme":        token.Theme,
				"metadata_uri": token.MetadataURI,
				"is_active":    token.IsActive,
				"minted_at":    token.MintedAt,
			}).
			FirstOrCreate(token)
		return result.Error
	})
}

// GetByOwner 按持有者分页查询
func (r *TokenRepository) GetByOwner(ctx context.Context, chainID, owner string, offset, limit int) ([]models.Token, error) {
	var tokens []models.Token
	err := r.db.WithContext(ctx).
		Where("chain_id = ? AND owner = ?", chainID, owner).
		Order("token_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&tokens).Error
	return tokens, err
}

func (r *TokenRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}
