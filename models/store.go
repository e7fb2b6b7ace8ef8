package models

import "time"

// Store mirrors the merchant platform's store directory. The ID is the
// platform's store id, not an auto-increment.
type Store struct {
	ID   int    `gorm:"primary_key" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
