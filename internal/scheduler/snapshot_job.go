package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"carbon-nft-system/internal/config"
	"carbon-nft-system/internal/service"
	"carbon-nft-system/pkg/logger"
)

// SnapshotScheduler 定时为每条链生成市场快照
type SnapshotScheduler struct {
	cron     *cron.Cron
	statsSvc *service.StatsService
	chains   []config.ChainConfig
	cronExpr string
}

func NewSnapshotScheduler(statsSvc *service.StatsService, chains []config.ChainConfig, cronExpr string) *SnapshotScheduler {
	if cronExpr == "" {
		// 默认每天零点
		cronExpr = "0 0 0 * * *"
	}
	return &SnapshotScheduler{
		cron:     cron.New(cron.WithSeconds()),
		statsSvc: statsSvc,
		chains:   chains,
		cronExpr: cronExpr,
	}
}

func (s *SnapshotScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.buildSnapshots)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Market snapshot scheduler started")
	return nil
}

func (s *SnapshotScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Market snapshot scheduler stopped")
}

func (s *SnapshotScheduler) buildSnapshots() {
	ctx := context.Background()
	day := time.Now().AddDate(0, 0, -1)

	for _, chain := range s.chains {
		if !chain.Enabled {
			continue
		}
		if err := s.statsSvc.BuildSnapshot(ctx, chain.ID, day); err != nil {
			logger.Error("Failed to build snapshot for chain:", chain.ID, err)
		}
	}
}

// TriggerManualSnapshot 手动触发一次快照
func (s *SnapshotScheduler) TriggerManualSnapshot(ctx context.Context, chainID string, day time.Time) error {
	return s.statsSvc.BuildSnapshot(ctx, chainID, day)
}
