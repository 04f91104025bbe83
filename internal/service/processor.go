package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carbon-nft-system/internal/blockchain"
	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

// eventPayload 事件的非索引字段，入库后供重放使用
type eventPayload struct {
	UserType    string `json:"user_type,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Score       uint64 `json:"score,omitempty"`
	Theme       string `json:"theme,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	BasePrice   string `json:"base_price,omitempty"`
	Payment     string `json:"payment,omitempty"`
	Buyer       string `json:"buyer,omitempty"`
}

// EventProcessor 把链上事件按序应用到状态机并落库
// 通过交易哈希加日志序号保证幂等
type EventProcessor struct {
	registrySvc *RegistryService
	exchangeSvc *ExchangeService
	eventRepo   *repository.EventRepository
	blockRepo   *repository.BlockRepository
}

func NewEventProcessor(
	registrySvc *RegistryService,
	exchangeSvc *ExchangeService,
	eventRepo *repository.EventRepository,
	blockRepo *repository.BlockRepository,
) *EventProcessor {
	return &EventProcessor{
		registrySvc: registrySvc,
		exchangeSvc: exchangeSvc,
		eventRepo:   eventRepo,
		blockRepo:   blockRepo,
	}
}

// Process 应用单个合约事件
func (p *EventProcessor) Process(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	exists, err := p.eventRepo.Exists(ctx, ev.TxHash, ev.LogIndex)
	if err != nil {
		return errors.New(errors.ErrStateApply, "failed to check event existence", err)
	}
	if exists {
		logger.WithFields(map[string]interface{}{
			"tx_hash":   ev.TxHash,
			"log_index": ev.LogIndex,
		}).Debug("事件已处理")
		return nil
	}

	if err := p.dispatch(ctx, chainID, ev, timestamp); err != nil {
		return err
	}

	if err := p.recordEvent(ctx, chainID, ev, timestamp); err != nil {
		return err
	}

	return p.blockRepo.MarkProcessed(ctx, chainID, int64(ev.BlockNum))
}

func (p *EventProcessor) dispatch(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	switch ev.Type {
	case models.EventUserRegistered:
		return p.registrySvc.ApplyUserRegistered(ctx, chainID, ev, timestamp)
	case models.EventTokenMinted:
		return p.registrySvc.ApplyTokenMinted(ctx, chainID, ev, timestamp)
	case models.EventGradeUpdated:
		return p.registrySvc.ApplyGradeUpdated(ctx, chainID, ev, timestamp)
	case models.EventTokenEndorsed:
		return p.registrySvc.ApplyTokenEndorsed(ctx, chainID, ev, timestamp)
	case models.EventTokenDeactivated:
		return p.registrySvc.ApplyTokenDeactivated(ctx, chainID, ev, timestamp)
	case models.EventTokenListed:
		return p.exchangeSvc.ApplyTokenListed(ctx, chainID, ev, timestamp)
	case models.EventListingCancelled:
		return p.exchangeSvc.ApplyListingCancelled(ctx, chainID, ev, timestamp)
	case models.EventTokenSold:
		return p.exchangeSvc.ApplyTokenSold(ctx, chainID, ev, timestamp)
	}
	return errors.New(errors.ErrStateApply, fmt.Sprintf("unknown event type: %s", ev.Type), nil)
}

// recordEvent 把事件写入重放日志
func (p *EventProcessor) recordEvent(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	payload := eventPayload{
		Score:       ev.Score,
		Theme:       ev.Theme,
		MetadataURI: ev.MetadataURI,
	}
	switch ev.Type {
	case models.EventUserRegistered:
		userType, err := userTypeFromWire(ev.UserType)
		if err != nil {
			return err
		}
		payload.UserType = string(userType)
	case models.EventTokenMinted, models.EventGradeUpdated:
		grade, err := gradeFromWire(ev.Grade)
		if err != nil {
			return err
		}
		payload.Grade = grade.String()
	case models.EventTokenListed:
		payload.BasePrice = ev.BasePrice.String()
	case models.EventTokenSold:
		payload.Payment = ev.Payment.String()
		payload.Buyer = ev.Buyer.Hex()
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.New(errors.ErrStateApply, "failed to marshal event payload", err)
	}

	if err := p.eventRepo.Create(ctx, &models.ContractEvent{
		ChainID:     chainID,
		EventType:   ev.Type,
		Actor:       ev.Actor.Hex(),
		TokenID:     ev.TokenID,
		Payload:     string(raw),
		TxHash:      ev.TxHash,
		LogIndex:    ev.LogIndex,
		BlockNumber: ev.BlockNum,
		Timestamp:   timestamp,
	}); err != nil {
		return errors.New(errors.ErrStateApply, "failed to persist event", err)
	}
	return nil
}
