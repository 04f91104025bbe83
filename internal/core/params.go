package core

import (
	"fmt"
	"math/big"
)

// 万分比基数
const bpsDenominator = 10000

var bigBpsDenominator = big.NewInt(bpsDenominator)

// Params 市场参数，启动时构建一次，之后不可变
type Params struct {
	feeBps             int64
	royaltyBps         int64
	royaltyBeneficiary string
	gradeMultipliers   map[Grade]int64
}

// NewParams 构建并校验市场参数
// 手续费加版税必须小于10000，等级乘数表必须覆盖全部五个等级
func NewParams(feeBps, royaltyBps int64, royaltyBeneficiary string, gradeMultipliers map[Grade]int64) (*Params, error) {
	if feeBps < 0 || royaltyBps < 0 {
		return nil, fmt.Errorf("negative basis points: fee=%d royalty=%d", feeBps, royaltyBps)
	}
	if feeBps+royaltyBps >= bpsDenominator {
		return nil, fmt.Errorf("fee (%d) + royalty (%d) basis points must be below %d", feeBps, royaltyBps, bpsDenominator)
	}

	multipliers := make(map[Grade]int64, len(AllGrades))
	for _, g := range AllGrades {
		m, ok := gradeMultipliers[g]
		if !ok {
			return nil, fmt.Errorf("grade multiplier table missing grade %s", g)
		}
		if m <= 0 {
			return nil, fmt.Errorf("grade %s multiplier must be positive, got %d", g, m)
		}
		multipliers[g] = m
	}

	return &Params{
		feeBps:             feeBps,
		royaltyBps:         royaltyBps,
		royaltyBeneficiary: royaltyBeneficiary,
		gradeMultipliers:   multipliers,
	}, nil
}

func (p *Params) FeeBasisPoints() int64 {
	return p.feeBps
}

func (p *Params) RoyaltyBasisPoints() int64 {
	return p.royaltyBps
}

func (p *Params) RoyaltyBeneficiary() string {
	return p.royaltyBeneficiary
}

func (p *Params) MultiplierFor(g Grade) int64 {
	return p.gradeMultipliers[g]
}

// applyBps 按万分比缩放金额，整数向下取整
func applyBps(amount *big.Int, bps int64) *big.Int {
	scaled := new(big.Int).Mul(amount, big.NewInt(bps))
	return scaled.Div(scaled, bigBpsDenominator)
}
