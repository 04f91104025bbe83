package core

import (
	"math/big"
	"sort"
	"time"

	"carbon-nft-system/pkg/errors"
)

type ListingStatus string

const (
	ListingActive    ListingStatus = "active"
	ListingSold      ListingStatus = "sold"
	ListingCancelled ListingStatus = "cancelled"
)

type Listing struct {
	TokenID   uint64
	Seller    string
	BasePrice *big.Int
	ListedAt  time.Time
	Status    ListingStatus
}

// Settlement 一次成交的完整拆分结果
// Refund是买家多付部分，由外部调用方负责退还
type Settlement struct {
	TokenID        uint64
	Seller         string
	Buyer          string
	SalePrice      *big.Int
	Fee            *big.Int
	Royalty        *big.Int
	SellerProceeds *big.Int
	Refund         *big.Int
}

// Exchange 挂单与结算状态机，持有权通过Registry变更
// 单写者模型，与Registry共用同一把逻辑锁
type Exchange struct {
	registry *Registry
	params   *Params
	active   map[uint64]*Listing
}

func NewExchange(registry *Registry, params *Params) *Exchange {
	return &Exchange{
		registry: registry,
		params:   params,
		active:   make(map[uint64]*Listing),
	}
}

// CreateListing 创建挂单，每个token同时最多一个活跃挂单
func (e *Exchange) CreateListing(tokenID uint64, seller string, basePrice *big.Int, now time.Time) (Listing, error) {
	token, err := e.registry.GetToken(tokenID)
	if err != nil {
		return Listing{}, err
	}
	if token.Owner != seller {
		return Listing{}, errors.New(errors.ErrNotOwner, "seller does not own token", nil)
	}
	if !token.Active {
		return Listing{}, errors.New(errors.ErrTokenInactive, "token is retired", nil)
	}
	if _, ok := e.active[tokenID]; ok {
		return Listing{}, errors.New(errors.ErrAlreadyListed, "token already has an active listing", nil)
	}
	if basePrice == nil || basePrice.Sign() <= 0 {
		return Listing{}, errors.New(errors.ErrInvalidPrice, "base price must be positive", nil)
	}

	listing := &Listing{
		TokenID:   tokenID,
		Seller:    seller,
		BasePrice: new(big.Int).Set(basePrice),
		ListedAt:  now,
		Status:    ListingActive,
	}
	e.active[tokenID] = listing
	return *listing, nil
}

// CancelListing 卖家撤单，撤销后挂单进入终态
func (e *Exchange) CancelListing(tokenID uint64, caller string) (Listing, error) {
	listing, ok := e.active[tokenID]
	if !ok {
		return Listing{}, errors.New(errors.ErrNoActiveListing, "no active listing for token", nil)
	}
	if listing.Seller != caller {
		return Listing{}, errors.New(errors.ErrNotSeller, "caller is not the seller", nil)
	}
	listing.Status = ListingCancelled
	delete(e.active, tokenID)
	return *listing, nil
}

// Quote 按token当前等级计算活跃挂单的成交价
func (e *Exchange) Quote(tokenID uint64) (*big.Int, error) {
	listing, ok := e.active[tokenID]
	if !ok {
		return nil, errors.New(errors.ErrNoActiveListing, "no active listing for token", nil)
	}
	token, err := e.registry.GetToken(tokenID)
	if err != nil {
		return nil, err
	}
	return applyBps(listing.BasePrice, e.params.MultiplierFor(token.Grade)), nil
}

// Purchase 结算：计算成交价和分成，经Registry原子转移持有权
// 成交价按购买时刻的等级计算，不是挂单时刻
func (e *Exchange) Purchase(tokenID uint64, buyer string, payment *big.Int, now time.Time) (Settlement, error) {
	listing, ok := e.active[tokenID]
	if !ok {
		return Settlement{}, errors.New(errors.ErrNoActiveListing, "no active listing for token", nil)
	}
	token, err := e.registry.GetToken(tokenID)
	if err != nil {
		return Settlement{}, err
	}
	if !token.Active {
		return Settlement{}, errors.New(errors.ErrTokenInactive, "token is retired", nil)
	}

	salePrice := applyBps(listing.BasePrice, e.params.MultiplierFor(token.Grade))
	if payment == nil || payment.Cmp(salePrice) < 0 {
		return Settlement{}, errors.New(errors.ErrInsufficientPayment, "payment below sale price", nil)
	}

	fee := applyBps(salePrice, e.params.FeeBasisPoints())
	royalty := applyBps(salePrice, e.params.RoyaltyBasisPoints())
	proceeds := new(big.Int).Sub(salePrice, fee)
	proceeds.Sub(proceeds, royalty)
	refund := new(big.Int).Sub(payment, salePrice)

	if err := e.registry.Transfer(tokenID, listing.Seller, buyer); err != nil {
		return Settlement{}, err
	}
	listing.Status = ListingSold
	delete(e.active, tokenID)

	return Settlement{
		TokenID:        tokenID,
		Seller:         listing.Seller,
		Buyer:          buyer,
		SalePrice:      salePrice,
		Fee:            fee,
		Royalty:        royalty,
		SellerProceeds: proceeds,
		Refund:         refund,
	}, nil
}

// GetListing 查询token的活跃挂单
func (e *Exchange) GetListing(tokenID uint64) (Listing, error) {
	listing, ok := e.active[tokenID]
	if !ok {
		return Listing{}, errors.New(errors.ErrNoActiveListing, "no active listing for token", nil)
	}
	return *listing, nil
}

// ActiveListings 全部活跃挂单，按token id排序
func (e *Exchange) ActiveListings() []Listing {
	out := make([]Listing, 0, len(e.active))
	for _, listing := range e.active {
		out = append(out, *listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

func (e *Exchange) ActiveListingCount() int {
	return len(e.active)
}
