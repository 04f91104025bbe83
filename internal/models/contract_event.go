package models

import (
	"time"
)

type EventType string

const (
	EventUserRegistered   EventType = "user_registered"
	EventTokenMinted      EventType = "token_minted"
	EventGradeUpdated     EventType = "grade_updated"
	EventTokenEndorsed    EventType = "token_endorsed"
	EventTokenDeactivated EventType = "token_deactivated"
	EventTokenListed      EventType = "token_listed"
	EventListingCancelled EventType = "listing_cancelled"
	EventTokenSold        EventType = "token_sold"
)

// ContractEvent 合约事件日志，内存状态可从此表完整重放
type ContractEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID     string    `gorm:"size:50;not null;index:idx_chain_block" json:"chain_id"`
	EventType   EventType `gorm:"size:30;not null" json:"event_type"`
	Actor       string    `gorm:"size:42;not null" json:"actor"`
	TokenID     uint64    `gorm:"index" json:"token_id"`
	Payload     string    `gorm:"type:text" json:"payload"`
	TxHash      string    `gorm:"size:66;not null;uniqueIndex:uk_tx_log" json:"tx_hash"`
	LogIndex    uint      `gorm:"not null;uniqueIndex:uk_tx_log" json:"log_index"`
	BlockNumber uint64    `gorm:"not null;index:idx_chain_block" json:"block_number"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ContractEvent) TableName() string {
	return "contract_events"
}
