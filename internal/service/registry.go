package service

import (
	"context"
	"fmt"
	"time"

	"carbon-nft-system/internal/blockchain"
	"carbon-nft-system/internal/core"
	"carbon-nft-system/internal/models"
	"carbon-nft-system/internal/repository"
	"carbon-nft-system/pkg/errors"
	"carbon-nft-system/pkg/logger"
)

type RegistryService struct {
	states    *States
	userRepo  *repository.UserRepository
	tokenRepo *repository.TokenRepository
}

func NewRegistryService(states *States, userRepo *repository.UserRepository, tokenRepo *repository.TokenRepository) *RegistryService {
	return &RegistryService{
		states:    states,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
	}
}

func userTypeFromWire(raw uint8) (core.UserType, error) {
	switch raw {
	case 0:
		return core.UserTypeIndividual, nil
	case 1:
		return core.UserTypeCompany, nil
	}
	return "", errors.New(errors.ErrEventParse, fmt.Sprintf("unknown user type: %d", raw), nil)
}

func gradeFromWire(raw uint8) (core.Grade, error) {
	grade := core.Grade(raw)
	if !grade.Valid() {
		return core.GradeF, errors.New(errors.ErrEventParse, fmt.Sprintf("unknown grade ordinal: %d", raw), nil)
	}
	return grade, nil
}

// ApplyUserRegistered 处理链上用户注册事件
func (s *RegistryService) ApplyUserRegistered(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}
	userType, err := userTypeFromWire(ev.UserType)
	if err != nil {
		return err
	}
	address := ev.Actor.Hex()

	if err := state.RegisterUser(address, userType, timestamp); err != nil {
		return errors.New(errors.ErrStateApply, "register user rejected", err)
	}

	if err := s.userRepo.Create(ctx, &models.User{
		ChainID:      chainID,
		Address:      address,
		UserType:     string(userType),
		RegisteredAt: timestamp,
	}); err != nil {
		return errors.New(errors.ErrStateApply, "failed to persist user", err)
	}

	logger.WithFields(map[string]interface{}{
		"chain_id":  chainID,
		"address":   address,
		"user_type": userType,
	}).Info("用户已注册")
	return nil
}

// ApplyTokenMinted 处理链上铸造事件
// 状态机重放出的id必须与链上id一致，不一致说明事件流有缺口
func (s *RegistryService) ApplyTokenMinted(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}
	grade, err := gradeFromWire(ev.Grade)
	if err != nil {
		return err
	}
	owner := ev.Actor.Hex()

	id, err := state.MintToken(owner, ev.MetadataURI, ev.Theme, grade, ev.Score, timestamp)
	if err != nil {
		return errors.New(errors.ErrStateApply, "mint rejected", err)
	}
	if id != ev.TokenID {
		return errors.New(errors.ErrStateApply,
			fmt.Sprintf("token id drift: derived %d, chain %d", id, ev.TokenID), nil)
	}

	if err := s.persistToken(ctx, chainID, id); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"token_id": id,
		"owner":    owner,
		"grade":    grade.String(),
		"theme":    ev.Theme,
	}).Info("NFT已铸造")
	return nil
}

// ApplyGradeUpdated 处理链上评级更新事件
func (s *RegistryService) ApplyGradeUpdated(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}
	grade, err := gradeFromWire(ev.Grade)
	if err != nil {
		return err
	}

	if err := state.UpdateGrade(ev.Actor.Hex(), ev.TokenID, grade, ev.Score, ev.MetadataURI, timestamp); err != nil {
		return errors.New(errors.ErrStateApply, "grade update rejected", err)
	}

	if err := s.persistToken(ctx, chainID, ev.TokenID); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"token_id": ev.TokenID,
		"grade":    grade.String(),
		"score":    ev.Score,
	}).Info("评级已更新")
	return nil
}

// ApplyTokenEndorsed 处理链上背书事件
func (s *RegistryService) ApplyTokenEndorsed(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	if err := state.Endorse(ev.TokenID, ev.Actor.Hex(), timestamp); err != nil {
		return errors.New(errors.ErrStateApply, "endorse rejected", err)
	}

	if err := s.persistToken(ctx, chainID, ev.TokenID); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"token_id": ev.TokenID,
		"endorser": ev.Actor.Hex(),
	}).Info("NFT已背书")
	return nil
}

// ApplyTokenDeactivated 处理链上下线事件
func (s *RegistryService) ApplyTokenDeactivated(ctx context.Context, chainID string, ev *blockchain.Event, timestamp time.Time) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}

	if err := state.Deactivate(ev.TokenID, ev.Actor.Hex()); err != nil {
		return errors.New(errors.ErrStateApply, "deactivate rejected", err)
	}

	if err := s.persistToken(ctx, chainID, ev.TokenID); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"chain_id": chainID,
		"token_id": ev.TokenID,
	}).Info("NFT已下线")
	return nil
}

// persistToken 把内存中的NFT状态落库
func (s *RegistryService) persistToken(ctx context.Context, chainID string, tokenID uint64) error {
	state, err := s.states.For(chainID)
	if err != nil {
		return err
	}
	token, err := state.GetToken(tokenID)
	if err != nil {
		return errors.New(errors.ErrStateApply, "token missing after apply", err)
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
		return errors.New(errors.ErrStateApply, "failed to persist token", err)
	}
	return nil
}

// GetToken 查询NFT当前状态
func (s *RegistryService) GetToken(chainID string, tokenID uint64) (core.Token, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return core.Token{}, err
	}
	return state.GetToken(tokenID)
}

// GetUserTokens 查询用户名下铸造的token id
func (s *RegistryService) GetUserTokens(chainID, address string) ([]uint64, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return nil, err
	}
	return state.GetUserTokens(address), nil
}

// UploadQuota 查询用户当前窗口剩余上传额度
func (s *RegistryService) UploadQuota(chainID, address string, now time.Time) (remaining int, canUpload bool, err error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return 0, false, err
	}
	remaining = state.RemainingUploads(address, now)
	return remaining, remaining > 0, nil
}

func (s *RegistryService) GetUser(chainID, address string) (core.User, error) {
	state, err := s.states.For(chainID)
	if err != nil {
		return core.User{}, err
	}
	return state.GetUser(address)
}
