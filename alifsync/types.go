package alifsync

// Request/response shapes for the HTTP surface.

type AccountCreateRequest struct {
	AccountType string `json:"account_type" binding:"required,oneof=main store"`
	Username    string `json:"username" binding:"required,max=64"`
	Password    string `json:"password" binding:"required"`

	// Optional binding for store accounts.
	StoreId   *int    `json:"store_id"`
	StoreName *string `json:"store_name"`
}

type AccountCreateResponse struct {
	Id          int    `json:"id"`
	AccountType string `json:"account_type"`
	Username    string `json:"username"`
}

type ReportRunRequest struct {
	TypeId     int    `json:"type_id"`
	DateFrom   string `json:"date_from" binding:"required,datetime=2006-01-02"`
	DateTo     string `json:"date_to" binding:"required,datetime=2006-01-02"`
	PollSec    int    `json:"poll_sec"`
	TimeoutSec int    `json:"timeout_sec"`
}
