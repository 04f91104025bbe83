package core

import (
	"time"

	"carbon-nft-system/pkg/errors"
)

type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeCompany    UserType = "company"
)

// 上传限额的滑动窗口长度
const uploadWindowLength = 7 * 24 * time.Hour

type User struct {
	Address      string
	Type         UserType
	RegisteredAt time.Time
}

type Token struct {
	ID           uint64
	Owner        string
	Grade        Grade
	Score        uint64
	Endorsements uint64
	Theme        string
	MetadataURI  string
	Active       bool
	MintedAt     time.Time
}

// UploadWindow 用户当前7天窗口的上传计数
type UploadWindow struct {
	WeekStart time.Time
	Uploads   int
}

// GraderPolicy 判断caller是否有权为owner的NFT评级
type GraderPolicy func(caller, owner string) bool

// Registry 用户与NFT的权威状态机
// 单写者模型：调用方负责串行化所有变更操作
type Registry struct {
	users       map[string]*User
	tokens      map[uint64]*Token
	minted      map[string][]uint64
	windows     map[string]*UploadWindow
	nextTokenID uint64
	uploadLimit int
	isGrader    GraderPolicy
}

func NewRegistry(uploadLimit int, isGrader GraderPolicy) *Registry {
	return &Registry{
		users:       make(map[string]*User),
		tokens:      make(map[uint64]*Token),
		minted:      make(map[string][]uint64),
		windows:     make(map[string]*UploadWindow),
		nextTokenID: 1,
		uploadLimit: uploadLimit,
		isGrader:    isGrader,
	}
}

// effectiveWindow 计算now时刻生效的窗口，不改动存储状态
// 读路径用它模拟翻转，写路径把结果落回windows
func effectiveWindow(now time.Time, stored *UploadWindow) (time.Time, int) {
	if stored == nil || now.Sub(stored.WeekStart) >= uploadWindowLength {
		return now, 0
	}
	return stored.WeekStart, stored.Uploads
}

// consumeUpload 原子地检查并消耗一次上传额度
// 超限时返回错误且不改动任何状态
func (r *Registry) consumeUpload(owner string, now time.Time) error {
	weekStart, uploads := effectiveWindow(now, r.windows[owner])
	if uploads >= r.uploadLimit {
		return errors.New(errors.ErrUploadLimitExceeded, "weekly upload limit reached", nil)
	}
	r.windows[owner] = &UploadWindow{WeekStart: weekStart, Uploads: uploads + 1}
	return nil
}

// RegisterUser 注册用户，重复注册失败
func (r *Registry) RegisterUser(address string, userType UserType, now time.Time) error {
	if _, ok := r.users[address]; ok {
		return errors.New(errors.ErrAlreadyRegistered, "user already registered", nil)
	}
	r.users[address] = &User{
		Address:      address,
		Type:         userType,
		RegisteredAt: now,
	}
	return nil
}

// MintToken 铸造NFT并返回新的token id
// id严格递增不复用，失败的调用不占用id
func (r *Registry) MintToken(recipient, metadataURI, theme string, initialGrade Grade, initialScore uint64, now time.Time) (uint64, error) {
	if _, ok := r.users[recipient]; !ok {
		return 0, errors.New(errors.ErrNotRegistered, "recipient is not registered", nil)
	}
	if err := r.consumeUpload(recipient, now); err != nil {
		return 0, err
	}

	id := r.nextTokenID
	r.nextTokenID++

	r.tokens[id] = &Token{
		ID:          id,
		Owner:       recipient,
		Grade:       initialGrade,
		Score:       initialScore,
		Theme:       theme,
		MetadataURI: metadataURI,
		Active:      true,
		MintedAt:    now,
	}
	r.minted[recipient] = append(r.minted[recipient], id)
	return id, nil
}

// UpdateGrade 授权评级方更新等级、分数和元数据
// 按NFT持有者的窗口计入上传额度
func (r *Registry) UpdateGrade(caller string, tokenID uint64, newGrade Grade, newScore uint64, newMetadataURI string, now time.Time) error {
	token, ok := r.tokens[tokenID]
	if !ok || !token.Active {
		return errors.New(errors.ErrTokenNotFound, "token not found or retired", nil)
	}
	if r.isGrader == nil || !r.isGrader(caller, token.Owner) {
		return errors.New(errors.ErrUnauthorizedGrader, "caller is not an authorized grader", nil)
	}
	if err := r.consumeUpload(token.Owner, now); err != nil {
		return err
	}

	token.Grade = newGrade
	token.Score = newScore
	token.MetadataURI = newMetadataURI
	return nil
}

// Endorse 为NFT背书，持有者不能给自己背书
// 背书不计入上传额度
func (r *Registry) Endorse(tokenID uint64, endorser string, now time.Time) error {
	token, ok := r.tokens[tokenID]
	if !ok || !token.Active {
		return errors.New(errors.ErrTokenNotFound, "token not found or retired", nil)
	}
	if token.Owner == endorser {
		return errors.New(errors.ErrSelfEndorsement, "owner cannot endorse own token", nil)
	}
	token.Endorsements++
	return nil
}

// Deactivate 持有者下线NFT，NFT不销毁只停用
func (r *Registry) Deactivate(tokenID uint64, caller string) error {
	token, ok := r.tokens[tokenID]
	if !ok || !token.Active {
		return errors.New(errors.ErrTokenNotFound, "token not found or retired", nil)
	}
	if token.Owner != caller {
		return errors.New(errors.ErrNotOwner, "caller does not own token", nil)
	}
	token.Active = false
	return nil
}

// Transfer 变更NFT持有者，仅供结算路径调用
func (r *Registry) Transfer(tokenID uint64, from, to string) error {
	token, ok := r.tokens[tokenID]
	if !ok {
		return errors.New(errors.ErrTokenNotFound, "token not found", nil)
	}
	if token.Owner != from {
		return errors.New(errors.ErrNotOwner, "from address does not own token", nil)
	}
	token.Owner = to
	return nil
}

// CanUpload 只读查询，模拟窗口翻转后判断是否还有额度
func (r *Registry) CanUpload(address string, now time.Time) bool {
	return r.RemainingUploads(address, now) > 0
}

// RemainingUploads 只读查询当前窗口剩余额度
func (r *Registry) RemainingUploads(address string, now time.Time) int {
	_, uploads := effectiveWindow(now, r.windows[address])
	remaining := r.uploadLimit - uploads
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (r *Registry) IsRegistered(address string) bool {
	_, ok := r.users[address]
	return ok
}

func (r *Registry) GetUser(address string) (User, error) {
	user, ok := r.users[address]
	if !ok {
		return User{}, errors.New(errors.ErrNotRegistered, "user not registered", nil)
	}
	return *user, nil
}

// GetUserTokens 返回铸造给该用户的token id，按铸造顺序，含已停用的
func (r *Registry) GetUserTokens(address string) []uint64 {
	ids := r.minted[address]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

func (r *Registry) GetToken(tokenID uint64) (Token, error) {
	token, ok := r.tokens[tokenID]
	if !ok {
		return Token{}, errors.New(errors.ErrTokenNotFound, "token not found", nil)
	}
	return *token, nil
}

func (r *Registry) OwnerOf(tokenID uint64) (string, error) {
	token, ok := r.tokens[tokenID]
	if !ok {
		return "", errors.New(errors.ErrTokenNotFound, "token not found", nil)
	}
	return token.Owner, nil
}

func (r *Registry) UserCount() int {
	return len(r.users)
}

func (r *Registry) TokenCount() int {
	return len(r.tokens)
}

// GradeDistribution 各等级在册NFT数量，不含已停用的
func (r *Registry) GradeDistribution() map[Grade]int {
	dist := make(map[Grade]int, len(AllGrades))
	for _, g := range AllGrades {
		dist[g] = 0
	}
	for _, token := range r.tokens {
		if token.Active {
			dist[token.Grade]++
		}
	}
	return dist
}
