package models

import (
	"time"
)

type User struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChainID      string    `gorm:"uniqueIndex:uk_chain_user;size:50;not null" json:"chain_id"`
	Address      string    `gorm:"uniqueIndex:uk_chain_user;size:42;not null" json:"address"`
	UserType     string    `gorm:"type:enum('individual','company');not null" json:"user_type"`
	RegisteredAt time.Time `gorm:"not null" json:"registered_at"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
