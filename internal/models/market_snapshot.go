package models

import (
	"time"
)

// MarketSnapshot 定时任务产出的市场统计快照
type MarketSnapshot struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID        string    `gorm:"uniqueIndex:uk_chain_day;size:50;not null" json:"chain_id"`
	SnapshotDate   string    `gorm:"uniqueIndex:uk_chain_day;size:10;not null" json:"snapshot_date"`
	UserCount      int64     `gorm:"not null" json:"user_count"`
	TokenCount     int64     `gorm:"not null" json:"token_count"`
	ActiveListings int64     `gorm:"not null" json:"active_listings"`
	SaleCount      int64     `gorm:"not null" json:"sale_count"`
	SaleVolume     string    `gorm:"type:decimal(65,0);not null;default:0" json:"sale_volume"`
	GradeCounts    string    `gorm:"type:text" json:"grade_counts"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}
