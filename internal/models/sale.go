package models

import (
	"time"
)

// Sale 不可变的成交结算记录
type Sale struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID        string    `gorm:"size:50;not null;index:idx_chain_time" json:"chain_id"`
	TokenID        uint64    `gorm:"not null;index" json:"token_id"`
	Seller         string    `gorm:"size:42;not null;index" json:"seller"`
	Buyer          string    `gorm:"size:42;not null;index" json:"buyer"`
	Grade          string    `gorm:"type:char(1);not null" json:"grade"`
	BasePrice      string    `gorm:"type:decimal(65,0);not null" json:"base_price"`
	SalePrice      string    `gorm:"type:decimal(65,0);not null" json:"sale_price"`
	Fee            string    `gorm:"type:decimal(65,0);not null" json:"fee"`
	Royalty        string    `gorm:"type:decimal(65,0);not null" json:"royalty"`
	SellerProceeds string    `gorm:"type:decimal(65,0);not null" json:"seller_proceeds"`
	Refund         string    `gorm:"type:decimal(65,0);not null;default:0" json:"refund"`
	TxHash         string    `gorm:"size:66;not null;uniqueIndex:uk_tx" json:"tx_hash"`
	SoldAt         time.Time `gorm:"not null;index:idx_chain_time" json:"sold_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Sale) TableName() string {
	return "sales"
}
