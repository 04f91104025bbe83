package repository

import (
	"context"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type SaleRepository struct {
	db *gorm.DB
}

func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// GetByChainPaginated 按成交时间倒序分页查询
func (r *SaleRepository) GetByChainPaginated(ctx context.Context, chainID string, offset, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("sold_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&sales).Error
	return sales, err
}

func (r *SaleRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}

// SumVolumeByChain 成交总额，按最小单位十进制字符串返回
func (r *SaleRepository) SumVolumeByChain(ctx context.Context, chainID string) (string, error) {
	var volume *string
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("chain_id = ?", chainID).
		Select("CAST(COALESCE(SUM(sale_price), 0) AS CHAR)").
		Scan(&volume).Error
	if err != nil || volume == nil {
		return "0", err
	}
	return *volume, nil
}
