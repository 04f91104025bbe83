package repository

import (
	"context"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.ContractEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// Exists 按交易哈希和日志序号判断事件是否已入库
func (r *EventRepository) Exists(ctx context.Context, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContractEvent{}).
		Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

// GetAllOrdered 按区块和日志序号取全量事件，用于启动重放
func (r *EventRepository) GetAllOrdered(ctx context.Context, chainID string) ([]models.ContractEvent, error) {
	var events []models.ContractEvent
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("block_number ASC, log_index ASC").
		Find(&events).Error
	return events, err
}

func (r *EventRepository) CountByChain(ctx context.Context, chainID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ContractEvent{}).
		Where("chain_id = ?", chainID).
		Count(&count).Error
	return count, err
}
