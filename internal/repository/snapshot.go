package repository

import (
	"context"

	"carbon-nft-system/internal/models"

	"gorm.io/gorm"
)

type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Upsert 写入某天的市场快照，同一天重复执行覆盖旧值
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.MarketSnapshot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("chain_id = ? AND snapshot_date = ?", snapshot.ChainID, snapshot.SnapshotDate).
			Assign(map[string]interface{}{
				"user_count":      snapshot.UserCount,
				"token_count":     snapshot.TokenCount,
				"active_listings": snapshot.ActiveListings,
				"sale_count":      snapshot.SaleCount,
				"sale_volume":     snapshot.SaleVolume,
				"grade_counts":    snapshot.GradeCounts,
			}).
			FirstOrCreate(snapshot)
		return result.Error
	})
}

// GetRecent 按日期倒序取最近的快照
func (r *SnapshotRepository) GetRecent(ctx context.Context, chainID string, limit int) ([]models.MarketSnapshot, error) {
	var snapshots []models.MarketSnapshot
	err := r.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("snapshot_date DESC").
		Limit(limit).
		Find(&snapshots).Error
	return snapshots, err
}
