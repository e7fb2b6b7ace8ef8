package alifsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
)

func testClient(baseURL string) *Client {
	return &Client{
		authURL:     baseURL + "/token",
		clientId:    "merchant-cabinet",
		apiBase:     baseURL,
		reportsBase: baseURL,
		apiKey:      "test-key",
		locale:      "ru",
		http:        &http.Client{Timeout: 5 * time.Second},
		download:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestTokenManagerReturnsCachedToken(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":"unexpected"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	acc := seedMainAccount(t, db, codec, "s3cret")
	expiresAt := time.Now().Add(10 * time.Minute)
	if err := db.Model(acc).Updates(map[string]interface{}{
		"access_token":      "cached-token",
		"access_expires_at": expiresAt,
	}).Error; err != nil {
		t.Fatalf("seed cached token: %v", err)
	}

	tm := NewTokenManager(db, codec, testClient(srv.URL))
	token, err := tm.GetValidAccessToken(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if token != "cached-token" {
		t.Fatalf("token = %q, want cached-token", token)
	}
	if calls != 0 {
		t.Fatalf("identity endpoint called %d times for a valid cached token", calls)
	}
}

func TestTokenManagerFallsBackToPasswordGrant(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)

	var grants []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		grant := r.PostFormValue("grant_type")
		grants = append(grants, grant)

		switch grant {
		case "refresh_token":
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
		case "password":
			if r.PostFormValue("username") != "merchant@test" ||
				r.PostFormValue("password") != "s3cret" ||
				r.PostFormValue("client_id") != "merchant-cabinet" ||
				r.PostFormValue("scope") != "openid" {
				http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"fresh-token","refresh_token":"rotated-refresh","expires_in":3600}`))
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	acc := seedMainAccount(t, db, codec, "s3cret")
	staleRefresh, err := codec.EncryptString("stale-refresh")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if err := db.Model(acc).Updates(map[string]interface{}{
		"access_token":      "expired-token",
		"access_expires_at": time.Now().Add(-time.Minute),
		"refresh_token_enc": staleRefresh,
	}).Error; err != nil {
		t.Fatalf("seed expired state: %v", err)
	}

	tm := NewTokenManager(db, codec, testClient(srv.URL))
	token, err := tm.GetValidAccessToken(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if token != "fresh-token" {
		t.Fatalf("token = %q, want fresh-token", token)
	}
	if len(grants) != 2 || grants[0] != "refresh_token" || grants[1] != "password" {
		t.Fatalf("grants = %v, want [refresh_token password]", grants)
	}

	var stored models.MerchantAccount
	if err := db.Where("id = ?", acc.ID).Take(&stored).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	if stored.AccessToken == nil || *stored.AccessToken != "fresh-token" {
		t.Fatalf("persisted access token = %v, want fresh-token", stored.AccessToken)
	}
	if stored.AccessExpiresAt == nil || !stored.AccessExpiresAt.After(time.Now()) {
		t.Fatalf("persisted expiry = %v, want in the future", stored.AccessExpiresAt)
	}
	if stored.RefreshTokenEnc == nil {
		t.Fatal("refresh token not persisted")
	}
	refresh, err := codec.DecryptString(*stored.RefreshTokenEnc)
	if err != nil {
		t.Fatalf("DecryptString stored refresh: %v", err)
	}
	if refresh != "rotated-refresh" {
		t.Fatalf("stored refresh = %q, want rotated-refresh", refresh)
	}
}

func TestTokenManagerKeepsRefreshTokenUnlessRotated(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostFormValue("grant_type") != "refresh_token" {
			http.Error(w, `{"error":"unexpected grant"}`, http.StatusBadRequest)
			return
		}
		if r.PostFormValue("refresh_token") != "refresh-1" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
			return
		}
		// No refresh_token in the response: the provider did not rotate.
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"refreshed-token","expires_in":600}`))
	}))
	defer srv.Close()

	acc := seedMainAccount(t, db, codec, "s3cret")
	enc, err := codec.EncryptString("refresh-1")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	if err := db.Model(acc).Update("refresh_token_enc", enc).Error; err != nil {
		t.Fatalf("seed refresh token: %v", err)
	}

	tm := NewTokenManager(db, codec, testClient(srv.URL))
	token, err := tm.GetValidAccessToken(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if token != "refreshed-token" {
		t.Fatalf("token = %q, want refreshed-token", token)
	}

	var stored models.MerchantAccount
	if err := db.Where("id = ?", acc.ID).Take(&stored).Error; err != nil {
		t.Fatalf("reload account: %v", err)
	}
	refresh, err := codec.DecryptString(*stored.RefreshTokenEnc)
	if err != nil {
		t.Fatalf("DecryptString stored refresh: %v", err)
	}
	if refresh != "refresh-1" {
		t.Fatalf("stored refresh = %q, want refresh-1 untouched", refresh)
	}
}

func TestTokenManagerCorruptRefreshTokenFallsBackToPassword(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)

	var grants []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		grants = append(grants, r.PostFormValue("grant_type"))
		if r.PostFormValue("grant_type") != "password" {
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-token","expires_in":3600}`))
	}))
	defer srv.Close()

	acc := seedMainAccount(t, db, codec, "s3cret")
	// Raw garbage, not something the codec produced: decrypt fails before
	// any refresh request could be built.
	if err := db.Model(acc).Update("refresh_token_enc", "not-a-ciphertext").Error; err != nil {
		t.Fatalf("seed corrupt refresh token: %v", err)
	}

	tm := NewTokenManager(db, codec, testClient(srv.URL))
	token, err := tm.GetValidAccessToken(context.Background(), acc.ID)
	if err != nil {
		t.Fatalf("GetValidAccessToken: %v", err)
	}
	if token != "fresh-token" {
		t.Fatalf("token = %q, want fresh-token", token)
	}
	if len(grants) != 1 || grants[0] != "password" {
		t.Fatalf("grants = %v, want only [password] (no refresh attempt on the wire)", grants)
	}
}

func TestTokenManagerPasswordGrantFailureIsFatal(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	acc := seedMainAccount(t, db, codec, "wrong-password")

	tm := NewTokenManager(db, codec, testClient(srv.URL))
	_, err := tm.GetValidAccessToken(context.Background(), acc.ID)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
}

func TestMainAccount(t *testing.T) {
	db := newTestDB(t)
	codec := newTestCodec(t)
	ctx := context.Background()

	if _, err := MainAccount(ctx, db); !errors.Is(err, ErrMainAccountNotFound) {
		t.Fatalf("error = %v, want ErrMainAccountNotFound", err)
	}

	seedMainAccount(t, db, codec, "first")
	latest := seedMainAccount(t, db, codec, "second")

	acc, err := MainAccount(ctx, db)
	if err != nil {
		t.Fatalf("MainAccount: %v", err)
	}
	if acc.ID != latest.ID {
		t.Fatalf("MainAccount id = %d, want latest %d", acc.ID, latest.ID)
	}
}
