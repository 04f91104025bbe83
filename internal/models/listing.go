package models

import (
	"time"
)

type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

type Listing struct {
	ID        uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID   string        `gorm:"size:50;not null;index:idx_chain_token" json:"chain_id"`
	TokenID   uint64        `gorm:"not null;index:idx_chain_token" json:"token_id"`
	Seller    string        `gorm:"size:42;not null;index" json:"seller"`
	BasePrice string        `gorm:"type:decimal(65,0);not null" json:"base_price"`
	Status    ListingStatus `gorm:"type:enum('active','sold','cancelled');not null;index" json:"status"`
	ListedAt  time.Time     `gorm:"not null" json:"listed_at"`
	ClosedAt  *time.Time    `json:"closed_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}
