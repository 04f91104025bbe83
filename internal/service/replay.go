package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"carbon-nft-system/internal/core"
	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

// ReplayService 启动时从事件日志重建内存状态
// 账本是唯一事实来源，镜像表只用于查询
type ReplayService struct {
	states    *States
	eventRepo *repository.EventRepository
}

func NewReplayService(states *States, eventRepo *repository.EventRepository) *ReplayService {
	return &ReplayService{
		states:    states,
		eventRepo: eventRepo,
	}
}

// Rebuild 按区块和日志序号顺序重放某条链的全部事件
func (s *ReplayService) Rebuild(ctx context.Context, chainID string) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	events, err := s.eventRepo.GetAllOrdered(ctx, chainID)
	if err != nil {
		return errors.New(errors.ErrStateApply, "failed to load event log", err)
	}

	for _, event := range events {
		if err := s.apply(state, event); err != nil {
			return errors.New(errors.ErrStateApply,
				fmt.Sprintf("replay failed at block %d tx %s", event.BlockNumber, event.TxHash), err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"events":   len(events),
	}).Info("状态已从事件日志重建")
	return nil
}

func (s *ReplayService) apply(state *State, event models.ContractEvent) error {
	var payload eventPayload
	if event.Payload != "" {
		if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
			return err
		}
	}

	switch event.EventType {
	case models.EventUserRegistered:
		return state.RegisterUser(event.Actor, core.UserType(payload.UserType), event.Timestamp)

	case models.EventTokenMinted:
		grade, err := core.ParseGrade(payload.Grade)
		if err != nil {
			return err
		}
		id, err := state.MintToken(event.Actor, payload.MetadataURI, payload.Theme, grade, payload.Score, event.Timestamp)
		if err != nil {
			return err
		}
		if id != event.TokenID {
			return fmt.Errorf("token id drift: derived %d, logged %d", id, event.TokenID)
		}
		return nil

	case models.EventGradeUpdated:
		grade, err := core.ParseGrade(payload.Grade)
		if err != nil {
			return err
		}
		return state.UpdateGrade(event.Actor, event.TokenID, grade, payload.Score, payload.MetadataURI, event.Timestamp)

	case models.EventTokenEndorsed:
		return state.Endorse(event.TokenID, event.Actor, event.Timestamp)

	case models.EventTokenDeactivated:
		return state.Deactivate(event.TokenID, event.Actor)

	case models.EventTokenListed:
		basePrice, ok := new(big.Int).SetString(payload.BasePrice, 10)
		if !ok {
			return fmt.Errorf("invalid base price in log: %q", payload.BasePrice)
		}
		_, err := state.CreateListing(event.TokenID, event.Actor, basePrice, event.Timestamp)
		return err

	case models.EventListingCancelled:
		_, err := state.CancelListing(event.TokenID, event.Actor)
		return err

	case models.EventTokenSold:
		payment, ok := new(big.Int).SetString(payload.Payment, 10)
		if !ok {
			return fmt.Errorf("invalid payment in log: %q", payload.Payment)
		}
		_, err := state.Purchase(event.TokenID, payload.Buyer, payment, event.Timestamp)
		return err
	}

	return fmt.Errorf("unknown event type: %s", event.EventType)
}
