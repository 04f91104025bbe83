package repository

import (
	"context"
	"errors"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// GetLastProcessed 取链上已处理到的区块水位，无记录返回0
func (r *BlockRepository) GetLastProcessed(ctx context.Context, chainID string) (int64, error) {
	var block models.ProcessedBlock
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		First(&block).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return block.BlockNumber, err
}

// MarkProcessed 推进区块水位
func (r *BlockRepository) MarkProcessed(ctx context.Context, chainID string, blockNumber int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ProcessedBlock
		err := tx.Where("chain_id = ?", chainID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.ProcessedBlock{
				ChainID:     chainID,
				BlockNumber: blockNumber,
			}).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&existing).Update("block_number", blockNumber).Error
	})
}
