package models

import "time"

const (
	AccountTypeMain  = "main"
	AccountTypeStore = "store"
)

// MerchantAccount is one external principal on the Alif merchant platform.
// The password and refresh token are stored encrypted; only the token
// manager mutates the token fields.
type MerchantAccount struct {
	ID          int    `gorm:"primary_key" json:"id"`
	AccountType string `gorm:"index;size:16;not null" json:"account_type"`

	Username    string `gorm:"size:64;not null" json:"username"`
	PasswordEnc string `gorm:"type:text;not null" json:"-"`

	AccessToken     *string    `gorm:"type:text" json:"-"`
	AccessExpiresAt *time.Time `json:"access_expires_at"`

	RefreshTokenEnc  *string    `gorm:"type:text" json:"-"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at"`

	// Store binding, set for store accounts only.
	StoreId   *int    `gorm:"index" json:"store_id"`
	StoreName *string `gorm:"size:128" json:"store_name"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
