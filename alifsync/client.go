package alifsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/config"
)

// Client is the low-level HTTP client for the Alif identity and report
// endpoints. It holds no token state; callers pass the bearer token in.
type Client struct {
	authURL     string
	clientId    string
	apiBase     string
	reportsBase string
	apiKey      string
	locale      string

	http     *http.Client
	download *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		authURL:     cfg.AlifAuthURL,
		clientId:    cfg.AlifClientId,
		apiBase:     strings.TrimRight(cfg.AlifAPIBase, "/"),
		reportsBase: strings.TrimRight(cfg.AlifReportsBase, "/"),
		apiKey:      cfg.AlifAPIKey,
		locale:      cfg.AlifLocale,
		http:        &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second},
		download:    &http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSeconds) * time.Second},
	}
}

// TokenResponse is the identity endpoint's grant response. RefreshToken is
// optional; some providers rotate it on every grant, some omit it.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// PasswordGrant exchanges username/password for tokens (grant_type=password).
func (c *Client) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientId)
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	form.Set("scope", "openid")
	return c.tokenExchange(ctx, form)
}

// RefreshGrant exchanges a refresh token for new tokens (grant_type=refresh_token).
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientId)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenExchange(ctx, form)
}

func (c *Client) tokenExchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("identity endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed TokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

func (c *Client) apiHeaders(req *http.Request, token string) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("locale", c.locale)
	req.Header.Set("Authorization", "Bearer "+token)
}

type generateReportRequest struct {
	TypeId       int    `json:"type_id"`
	DatetimeFrom string `json:"datetime_from"`
	DatetimeTo   string `json:"datetime_to"`
}

type generateReportResponse struct {
	ReportId string `json:"report_id"`
}

// GenerateReport posts a generation request and returns the platform's
// report id.
func (c *Client) GenerateReport(ctx context.Context, token string, typeId int, dateFrom, dateTo time.Time) (string, error) {
	payload, err := json.Marshal(generateReportRequest{
		TypeId:       typeId,
		DatetimeFrom: dateFrom.Format("2006-01-02"),
		DatetimeTo:   dateTo.Format("2006-01-02"),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.reportsBase+"/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.apiHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("alif api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed generateReportResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.ReportId == "" {
		return "", fmt.Errorf("response carries no report_id: %s", strings.TrimSpace(string(body)))
	}
	return parsed.ReportId, nil
}

type checkReportResponse struct {
	Status string `json:"status"`
}

// CheckReport returns the platform's status string for a report, or
// "UNKNOWN" when the response omits the field. An absent field is not an
// error; transport and HTTP failures are.
func (c *Client) CheckReport(ctx context.Context, token, reportId string) (string, error) {
	endpoint := c.reportsBase + "/check?" + url.Values{"report_id": {reportId}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.apiHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("alif api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed checkReportResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Status == "" {
		return "UNKNOWN", nil
	}
	return parsed.Status, nil
}

// DownloadReport fetches the finished export. The payload is binary, so
// the accept header is widened.
func (c *Client) DownloadReport(ctx context.Context, token, reportId string) ([]byte, error) {
	endpoint := c.reportsBase + "/download?" + url.Values{"report_id": {reportId}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.apiHeaders(req, token)
	req.Header.Set("Accept", "*/*")

	resp, err := c.download.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("alif api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

type storeEntry struct {
	Id      *int   `json:"id"`
	StoreId *int   `json:"store_id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
}

// ListStores fetches the merchant's store directory. The platform returns
// either a bare list or {"data": [...]}.
func (c *Client) ListStores(ctx context.Context, token string) ([]storeEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/merchant/merchant/stores", nil)
	if err != nil {
		return nil, err
	}
	c.apiHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("alif api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var bare []storeEntry
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	var wrapped struct {
		Data []storeEntry `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected stores response shape: %s", strings.TrimSpace(string(body)))
	}
	return wrapped.Data, nil
}
