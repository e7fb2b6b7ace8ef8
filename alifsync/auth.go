package alifsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/utils"
	"gorm.io/gorm"
)

// tokenSkew is the safety margin subtracted from a token's nominal
// lifetime, so a token never expires mid-request.
const tokenSkew = 60 * time.Second

// TokenManager keeps one authenticated session per merchant account alive.
// Flows, in priority order: cached access token, refresh grant, password
// grant. A refresh failure is never fatal; only the password grant failing
// is. Exchanges per account are serialized so two concurrent pipeline runs
// cannot invalidate each other's refresh token.
type TokenManager struct {
	db     *gorm.DB
	codec  *utils.SecretCodec
	client *Client

	mu    sync.Mutex
	locks map[int]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

func NewTokenManager(db *gorm.DB, codec *utils.SecretCodec, client *Client) *TokenManager {
	return &TokenManager{
		db:     db,
		codec:  codec,
		client: client,
		locks:  map[int]*sync.Mutex{},
		now:    time.Now,
	}
}

func (m *TokenManager) accountLock(accountId int) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.locks[accountId]
	if l == nil {
		l = &sync.Mutex{}
		m.locks[accountId] = l
	}
	return l
}

// GetValidAccessToken returns a currently valid access token for the
// account, performing whatever exchange is needed and persisting the new
// token state before returning.
func (m *TokenManager) GetValidAccessToken(ctx context.Context, accountId int) (string, error) {
	l := m.accountLock(accountId)
	l.Lock()
	defer l.Unlock()

	var acc models.MerchantAccount
	if err := m.db.WithContext(ctx).Where("id = ?", accountId).Take(&acc).Error; err != nil {
		return "", err
	}

	// Cheap path: cached token still valid beyond the skew window.
	if acc.AccessToken != nil && *acc.AccessToken != "" && m.isValid(acc.AccessExpiresAt) {
		return *acc.AccessToken, nil
	}

	if acc.RefreshTokenEnc != nil && *acc.RefreshTokenEnc != "" {
		if token, ok := m.tryRefresh(ctx, &acc); ok {
			return token, nil
		}
	}

	return m.passwordFlow(ctx, &acc)
}

func (m *TokenManager) isValid(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return expiresAt.After(m.now().Add(tokenSkew))
}

// tryRefresh attempts a refresh-token exchange. Any failure here (decrypt,
// transport, non-2xx, decode) downgrades to the password fallback; only
// programming errors should ever surface from this path.
func (m *TokenManager) tryRefresh(ctx context.Context, acc *models.MerchantAccount) (string, bool) {
	refreshToken, err := m.codec.DecryptString(*acc.RefreshTokenEnc)
	if err != nil || refreshToken == "" {
		// Corrupt stored refresh token behaves like no refresh token.
		return "", false
	}

	resp, err := m.client.RefreshGrant(ctx, refreshToken)
	if err != nil || resp.AccessToken == "" {
		return "", false
	}

	if err := m.applyTokenResponse(ctx, acc, resp); err != nil {
		return "", false
	}
	return resp.AccessToken, true
}

func (m *TokenManager) passwordFlow(ctx context.Context, acc *models.MerchantAccount) (string, error) {
	password, err := m.codec.DecryptString(acc.PasswordEnc)
	if err != nil {
		// Unreadable password means no credential path remains.
		return "", &AuthError{Reason: "stored password is unreadable", Err: err}
	}

	resp, err := m.client.PasswordGrant(ctx, acc.Username, password)
	if err != nil {
		return "", &AuthError{Reason: "password grant rejected", Err: err}
	}
	if resp.AccessToken == "" {
		return "", &AuthError{Reason: "identity endpoint returned no access token"}
	}

	if err := m.applyTokenResponse(ctx, acc, resp); err != nil {
		return "", &AuthError{Reason: "persisting token state", Err: err}
	}
	return resp.AccessToken, nil
}

// applyTokenResponse overwrites the cached access token and expiry, keeps
// the old refresh token unless the response rotated it, and commits before
// the token is handed out.
func (m *TokenManager) applyTokenResponse(ctx context.Context, acc *models.MerchantAccount, resp *TokenResponse) error {
	expiresIn := resp.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	expiresAt := m.now().Add(time.Duration(expiresIn)*time.Second - tokenSkew)

	acc.AccessToken = &resp.AccessToken
	acc.AccessExpiresAt = &expiresAt

	if resp.RefreshToken != "" {
		enc, err := m.codec.EncryptString(resp.RefreshToken)
		if err != nil {
			return err
		}
		acc.RefreshTokenEnc = &enc
	}

	updates := map[string]interface{}{
		"access_token":      acc.AccessToken,
		"access_expires_at": acc.AccessExpiresAt,
		"refresh_token_enc": acc.RefreshTokenEnc,
	}
	if err := m.db.WithContext(ctx).Model(&models.MerchantAccount{}).Where("id = ?", acc.ID).Updates(updates).Error; err != nil {
		return err
	}
	return nil
}

// MainAccount loads the single MAIN merchant account the pipeline operates
// under. Missing it is a hard error: nothing can authenticate without it.
func MainAccount(ctx context.Context, db *gorm.DB) (*models.MerchantAccount, error) {
	var acc models.MerchantAccount
	err := db.WithContext(ctx).
		Where("account_type = ?", models.AccountTypeMain).
		Order("id DESC").
		First(&acc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMainAccountNotFound
		}
		return nil, err
	}
	return &acc, nil
}
