package service

import (
	"fmt"

	"carbon-nft-system/internal/core"
	"carbon-nft-system/pkg/errors"
)

// States 每条链一套独立的内存状态机
type States struct {
	byChain map[string]*State
}

func NewStates(chainIDs []string, uploadLimit int, isGrader core.GraderPolicy, params *core.Params) *States {
	byChain := make(map[string]*State, len(chainIDs))
	for _, id := range chainIDs {
		byChain[id] = NewState(uploadLimit, isGrader, params)
	}
	return &States{byChain: byChain}
}

func (s *States) For(chainID string) (*State, error) {
	state, ok := s.byChain[chainID]
	if !ok {
		return nil, errors.New(errors.ErrStateApply,
			fmt.Sprintf("no state for chain: %s", chainID), nil)
	}
	return state, nil
}
