package blockchain

import (
	"context"
	"sync/atomic"
	"time"

	"carbon-nft-system/internal/config"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/logger"
)

// EventListener 轮询合约事件并按序推入通道
type EventListener struct {
	chainCfg     *config.ChainConfig
	client       *Client
	blockRepo    *repository.BlockRepository
	eventChan    chan *Event
	stopChan     chan struct{}
	isProcessing int32
}

func NewEventListener(chainCfg *config.ChainConfig, client *Client, blockRepo *repository.BlockRepository) *EventListener {
	return &EventListener{
		chainCfg:  chainCfg,
		client:    client,
		blockRepo: blockRepo,
		eventChan: make(chan *Event, 1000),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动事件监听器
func (l *EventListener) Start(ctx context.Context, startBlock int64) {
	interval := l.chainCfg.PullInterval
	if interval <= 0 {
		interval = 15
	}
	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	lastProcessedBlock := startBlock

	for {
		select {
		case <-ctx.Done():
			logger.Info("事件监听器已停止：上下文已取消")
			return
		case <-l.stopChan:
			logger.Info("事件监听器已停止：收到停止信号")
			return
		case <-ticker.C:
			if atomic.LoadInt32(&l.isProcessing) == 1 {
				logger.WithFields(map[string]interface{}{
					"chain_id": l.chainCfg.ID,
				}).Warn("上一次处理尚未完成，跳过本次触发")
				continue
			}

			atomic.StoreInt32(&l.isProcessing, 1)

			block, err := l.processNewBlocks(ctx, lastProcessedBlock)
			if err != nil {
				logger.Error("处理区块失败:", err)
			} else if block > lastProcessedBlock {
				lastProcessedBlock = block
			}

			atomic.StoreInt32(&l.isProcessing, 0)
		}
	}
}

// Stop 停止事件监听器
func (l *EventListener) Stop() {
	close(l.stopChan)
}

// GetEventChannel 获取事件通道
func (l *EventListener) GetEventChannel() <-chan *Event {
	return l.eventChan
}

// IsProcessing 返回是否正在处理
func (l *EventListener) IsProcessing() bool {
	return atomic.LoadInt32(&l.isProcessing) == 1
}

// processNewBlocks 拉取新确认区块内的合约事件
func (l *EventListener) processNewBlocks(ctx context.Context, lastBlock int64) (int64, error) {
	confirmedBlock, err := l.client.GetConfirmBlockNumber(ctx)
	if err != nil {
		return lastBlock, err
	}

	if confirmedBlock <= lastBlock {
		return lastBlock, nil
	}

	startBlock := lastBlock + 1
	if startBlock == 1 && l.chainCfg.StartBlock > 0 {
		startBlock = l.chainCfg.StartBlock
	}

	batchSize := int64(l.chainCfg.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}
	if confirmedBlock-startBlock >= batchSize {
		confirmedBlock = startBlock + batchSize - 1
	}

	logs, err := l.client.GetContractLogs(ctx, startBlock, confirmedBlock)
	if err != nil {
		return lastBlock, err
	}

	// 没有事件也要推进水位，避免重复拉取
	if len(logs) == 0 {
		if err := l.blockRepo.MarkProcessed(ctx, l.chainCfg.ID, confirmedBlock); err != nil {
			logger.Error("标记区块已处理失败:", err)
			return lastBlock, err
		}
		return confirmedBlock, nil
	}

	// FilterLogs按区块和日志序号有序返回，这里保持顺序推入通道
	for _, log := range logs {
		event, err := ParseLog(log)
		if err != nil {
			logger.Error("解析日志失败:", err)
			continue
		}

		select {
		case l.eventChan <- event:
		default:
			logger.Warn("事件通道已满，丢弃事件")
		}
	}

	// 有事件时水位由事件处理完成后推进
	return confirmedBlock, nil
}
