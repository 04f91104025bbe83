package service

import (
	"context"
	"math/big"
	"time"

	"carbon-nft-system/internal/blockchain"
	"carbon-nft-system/internal/core"
	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

type ExchangeService struct {
	states      *States
	listingRepo *repository.ListingRepository
	saleRepo    *repository.SaleRepository
	tokenRepo   *repository.TokenRepository
}

func NewExchangeService(
	states *States,
	listingRepo *repository.ListingRepository,
	saleRepo *repository.SaleRepository,
	tokenRepo *repository.TokenRepository,
) *ExchangeService {
	return &ExchangeService{
		states:      states,
		listingRepo: listingRepo,
		saleRepo:    saleRepo,
		tokenRepo:   tokenRepo,
	}
}

// ApplyTokenListed 处理链上挂单事件
func (s *ExchangeService) ApplyTokenListed(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	listing, err := state.CreateListing(ev.TokenID, ev.Actor.Hex(), ev.BasePrice, timestamp)
	if err != nil {
		return errors.New(errors.ErrStateApply, "listing rejected", err)
	}

	if err := s.listingRepo.Create(ctx, &models.Listing{
		ChainID:   chainID,
		TokenID:   listing.TokenID,
		Seller:    listing.Seller,
		BasePrice: listing.BasePrice.String(),
		Status:    models.ListingStatusActive,
		ListedAt:  listing.ListedAt,
	}); err != nil {
		return errors.New(errors.ErrStateApply, "failed to persist listing", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":   chainID,
		"token_id":   listing.TokenID,
		"seller":     listing.Seller,
		"base_price": listing.BasePrice.String(),
	}).Info("挂单已创建")
	return nil
}

// ApplyListingCancelled 处理链上撤单事件
func (s *ExchangeService) ApplyListingCancelled(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	listing, err := state.CancelListing(ev.TokenID, ev.Actor.Hex())
	if err != nil {
		return errors.New(errors.ErrStateApply, "cancel rejected", err)
	}

	if err := s.listingRepo.Close(ctx, chainID, ev.TokenID, models.ListingStatusCancelled, timestamp); err != nil {
		return errors.New(errors.ErrStateApply, "failed to close listing", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"token_id": listing.TokenID,
		"seller":   listing.Seller,
	}).Info("挂单已撤销")
	return nil
}

// ApplyTokenSold 处理链上成交事件：结算、转移持有权、落库成交记录
func (s *ExchangeService) ApplyTokenSold(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	// 结算前取挂单底价和当前等级，结算会关闭挂单
	listing, err := state.GetListing(ev.TokenID)
	if err != nil {
		return errors.New(errors.ErrStateApply, "sold event without active listing", err)
	}
	token, err := state.GetToken(ev.TokenID)
	if err != nil {
		return errors.New(errors.ErrStateApply, "sold event for unknown token", err)
	}

	settlement, err := state.Purchase(ev.TokenID, ev.Buyer.Hex(), ev.Payment, timestamp)
	if err != nil {
		return errors.New(errors.ErrStateApply, "purchase rejected", err)
	}

	if err := s.listingRepo.Close(ctx, chainID, ev.TokenID, models.ListingStatusSold, timestamp); err != nil {
		return errors.New(errors.ErrStateApply, "failed to close listing", err)
	}

	if err := s.saleRepo.Create(ctx, &models.Sale{
		ChainID:        chainID,
		TokenID:        settlement.TokenID,
		Seller:         settlement.Seller,
		Buyer:          settlement.Buyer,
		Grade:          token.Grade.String(),
		BasePrice:      listing.BasePrice.String(),
		SalePrice:      settlement.SalePrice.String(),
		Fee:            settlement.Fee.String(),
		Royalty:        settlement.Royalty.String(),
		SellerProceeds: settlement.SellerProceeds.String(),
		Refund:         settlement.Refund.String(),
		TxHash:         ev.TxHash,
		SoldAt:         timestamp,
	}); err != nil {
		return errors.New(errors.ErrStateApply, "failed to persist sale", err)
	}

	if err := s.persistOwner(ctx, chainID, ev.TokenID); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":   chainID,
		"token_id":   settlement.TokenID,
		"seller":     settlement.Seller,
		"buyer":      settlement.Buyer,
		"sale_price": settlement.SalePrice.String(),
		"fee":        settlement.Fee.String(),
		"royalty":    settlement.Royalty.String(),
		"proceeds":   settlement.SellerProceeds.String(),
		"refund":     settlement.Refund.String(),
	}).Info("成交已结算")
	return nil
}

// persistOwner 成交后同步NFT镜像的持有者
func (s *ExchangeService) persistOwner(ctx context.Context, chainID string, tokenID uint64) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}
	token, err := state.GetToken(tokenID)
	if err != nil {
		return errors.New(errors.ErrStateApply, "token missing after settlement", err)
	}

	if err := s.tokenRepo.Upsert(ctx, &models.Token{
		ChainID:      chainID,
		TokenID:      token.ID,
		Owner:        token.Owner,
		Grade:        token.Grade.String(),
		Score:        token.Score,
		Endorsements: token.Endorsements,
		Theme:        token.Theme,
		MetadataURI:  token.MetadataURI,
		IsActive:     token.Active,
		MintedAt:     token.MintedAt,
	}); err != nil {
		return errors.New(errors.ErrStateApply, "failed to persist token owner", err)
	}
	return nil
}

// Quote 活跃挂单按当前等级的成交价
func (s *ExchangeService) Quote(chainID string, tokenID uint64) (*big.Int, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return nil, err
	}
	return state.Quote(tokenID)
}

// GetListing 查询活跃挂单
func (s *ExchangeService) GetListing(chainID string, tokenID uint64) (core.Listing, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return core.Listing{}, err
	}
	return state.GetListing(tokenID)
}

// ListActive 分页查询活跃挂单
func (s *ExchangeService) ListActive(ctx context.Context, chainID string, offset, limit int) ([]models.Listing, int64, error) {
	listings, err := s.listingRepo.GetActivePaginated(ctx, chainID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.listingRepo.CountActive(ctx, chainID)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

// ListSales 分页查询成交记录
func (s *ExchangeService) ListSales(ctx context.Context, chainID string, offset, limit int) ([]models.Sale, int64, error) {
	sales, err := s.saleRepo.GetByChainPaginated(ctx, chainID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.saleRepo.CountByChain(ctx, chainID)
	if err != nil {
		return nil, 0, err
	}
	return sales, total, nil
}
