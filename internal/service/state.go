package service

import (
	"math/big"
	"sync"
	"time"

	"carbon-nft-system/internal/core"
)

// State 持有Registry和Exchange的内存状态
// 所有变更经同一把锁串行化，读查询走读锁，不会观察到半提交状态
type State struct {
	mu       sync.RWMutex
	registry *core.Registry
	exchange *core.Exchange
}

func NewState(uploadLimit int, isGrader core.GraderPolicy, params *core.Params) *State {
	registry := core.NewRegistry(uploadLimit, isGrader)
	return &State{
		registry: registry,
		exchange: core.NewExchange(registry, params),
	}
}

func (s *State) RegisterUser(address string, userType core.UserType, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.RegisterUser(address, userType, now)
}

func (s *State) MintToken(recipient, metadataURI, theme string, grade core.Grade, score uint64, now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.MintToken(recipient, metadataURI, theme, grade, score, now)
}

func (s *State) UpdateGrade(caller string, tokenID uint64, grade core.Grade, score uint64, metadataURI string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.UpdateGrade(caller, tokenID, grade, score, metadataURI, now)
}

func (s *State) Endorse(tokenID uint64, endorser string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Endorse(tokenID, endorser, now)
}

func (s *State) Deactivate(tokenID uint64, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Deactivate(tokenID, caller)
}

func (s *State) CreateListing(tokenID uint64, seller string, basePrice *big.Int, now time.Time) (core.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange.CreateListing(tokenID, seller, basePrice, now)
}

func (s *State) CancelListing(tokenID uint64, caller string) (core.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange.CancelListing(tokenID, caller)
}

func (s *State) Purchase(tokenID uint64, buyer string, payment *big.Int, now time.Time) (core.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchange.Purchase(tokenID, buyer, payment, now)
}

func (s *State) GetUser(address string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.GetUser(address)
}

func (s *State) GetToken(tokenID uint64) (core.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.GetToken(tokenID)
}

func (s *State) GetUserTokens(address string) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.GetUserTokens(address)
}

func (s *State) CanUpload(address string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.CanUpload(address, now)
}

func (s *State) RemainingUploads(address string, now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.RemainingUploads(address, now)
}

func (s *State) GetListing(tokenID uint64) (core.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchange.GetListing(tokenID)
}

func (s *State) Quote(tokenID uint64) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchange.Quote(tokenID)
}

func (s *State) ActiveListings() []core.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchange.ActiveListings()
}

func (s *State) ActiveListingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchange.ActiveListingCount()
}

func (s *State) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.UserCount()
}

func (s *State) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.TokenCount()
}

func (s *State) GradeDistribution() map[core.Grade]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.GradeDistribution()
}
