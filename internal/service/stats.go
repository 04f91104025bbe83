package service

import (
	"context"
	"encoding/json"
	"time"

	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

// MarketStats 市场实时统计
type MarketStats struct {
	ChainID        string         `json:"chain_id"`
	UserCount      int            `json:"user_count"`
	TokenCount     int            `json:"token_count"`
	ActiveListings int            `json:"active_listings"`
	SaleCount      int64          `json:"sale_count"`
	SaleVolume     string         `json:"sale_volume"`
	GradeCounts    map[string]int `json:"grade_counts"`
}

type StatsService struct {
	states       *States
	saleRepo     *repository.SaleRepository
	snapshotRepo *repository.SnapshotRepository
}

func NewStatsService(states *States, saleRepo *repository.SaleRepository, snapshotRepo *repository.SnapshotRepository) *StatsService {
	return &StatsService{
		states:       states,
		saleRepo:     saleRepo,
		snapshotRepo: snapshotRepo,
	}
}

// GetStats 汇总内存状态和成交表的市场统计
func (s *StatsService) GetStats(ctx context.Context, chainID string) (*MarketStats, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return nil, err
	}

	saleCount, err := s.saleRepo.CountByChain(ctx, chainID)
	if err != nil {
		return nil, err
	}
	volume, err := s.saleRepo.SumVolumeByChain(ctx, chainID)
	if err != nil {
		return nil, err
	}

	gradeCounts := make(map[string]int)
	for grade, count := range state.GradeDistribution() {
		gradeCounts[grade.String()] = count
	}

	return &MarketStats{
		ChainID:        chainID,
		UserCount:      state.UserCount(),
		TokenCount:     state.TokenCount(),
		ActiveListings: state.ActiveListingCount(),
		SaleCount:      saleCount,
		SaleVolume:     volume,
		GradeCounts:    gradeCounts,
	}, nil
}

// BuildSnapshot 固化某天的市场统计，重复执行覆盖当天旧值
func (s *StatsService) BuildSnapshot(ctx context.Context, chainID string, day time.Time) error {
	stats, err := s.GetStats(ctx, chainID)
	if err != nil {
		return err
	}

	gradeCounts, err := json.Marshal(stats.GradeCounts)
	if err != nil {
		return errors.New(errors.ErrStateApply, "failed to marshal grade counts", err)
	}

	snapshot := &models.MarketSnapshot{
		ChainID:        chainID,
		SnapshotDate:   day.Format("2006-01-02"),
		UserCount:      int64(stats.UserCount),
		TokenCount:     int64(stats.TokenCount),
		ActiveListings: int64(stats.ActiveListings),
		SaleCount:      stats.SaleCount,
		SaleVolume:     stats.SaleVolume,
		GradeCounts:    string(gradeCounts),
	}

	if err := s.snapshotRepo.Upsert(ctx, snapshot); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":      chainID,
		"snapshot_date": snapshot.SnapshotDate,
		"sale_volume":   snapshot.SaleVolume,
	}).Info("市场快照已生成")
	return nil
}

// GetRecentSnapshots 最近的市场快照
func (s *StatsService) GetRecentSnapshots(ctx context.Context, chainID string, limit int) ([]models.MarketSnapshot, error) {
	return s.snapshotRepo.GetRecent(ctx, chainID, limit)
}
