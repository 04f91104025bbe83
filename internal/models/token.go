package models

import (
	"time"
)

type Token struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID      string    `gorm:"uniqueIndex:uk_chain_token;size:50;not null" json:"chain_id"`
	TokenID      uint64    `gorm:"uniqueIndex:uk_chain_token;not null" json:"token_id"`
	Owner        string    `gorm:"size:42;not null;index" json:"owner"`
	Grade        string    `gorm:"type:char(1);not null" json:"grade"`
	Score        uint64    `gorm:"not null;default:0" json:"score"`
	Endorsements uint64    `gorm:"not null;default:0" json:"endorsements"`
	Theme        string    `gorm:"size:100" json:"theme"`
	MetadataURI  string    `gorm:"size:255" json:"metadata_uri"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	MintedAt     time.Time `gorm:"not null" json:"minted_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Token) TableName() string {
	return "tokens"
}
