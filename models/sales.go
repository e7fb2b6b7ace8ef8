package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report run states. Transitions are forward-only; FAILED is reachable
// only from the waiting phase.
const (
	ReportRunStatusCreated   = "CREATED"
	ReportRunStatusPending   = "PENDING"
	ReportRunStatusSuccess   = "SUCCESS"
	ReportRunStatusIngesting = "INGESTING"
	ReportRunStatusIngested  = "INGESTED"
	ReportRunStatusFailed    = "FAILED"
)

const (
	FactStatusActive   = "active"
	FactStatusCanceled = "canceled"
)

const (
	SkuStatusActive  = "active"
	SkuStatusMissing = "missing"
	SkuStatusDeleted = "deleted"
	SkuStatusUnknown = "unknown"
)

// ReportRun is one request for a date-ranged report from the platform.
// ReportId is assigned once by the platform and never changes.
type ReportRun struct {
	ID       int    `gorm:"primary_key" json:"id"`
	StoreId  *int   `gorm:"index" json:"store_id"`
	ReportId string `gorm:"size:64;not null" json:"report_id"`
	TypeId   int    `gorm:"not null" json:"type_id"`

	DateFrom time.Time `gorm:"type:date;not null" json:"date_from"`
	DateTo   time.Time `gorm:"type:date;not null" json:"date_to"`

	Status string `gorm:"size:32;not null;default:CREATED" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// RawSalesRow keeps one export line verbatim (after normalization) for
// traceability. (report_run_id, source_row_no) is unique, so re-ingesting
// the same run is append-only idempotent.
type RawSalesRow struct {
	ID          int `gorm:"primary_key" json:"id"`
	ReportRunId int `gorm:"uniqueIndex:idx_raw_report_row,priority:1;not null" json:"report_run_id"`
	SourceRowNo int `gorm:"uniqueIndex:idx_raw_report_row,priority:2;not null" json:"source_row_no"`

	SaleDate      *time.Time `gorm:"type:date" json:"sale_date"`
	ApplicationId *int       `json:"application_id"`

	Client      *string `gorm:"size:256" json:"client"`
	ProductName *string `gorm:"type:text" json:"product_name"`

	Price *decimal.Decimal `gorm:"type:decimal(18,2)" json:"price"`
	Sku   *string          `gorm:"size:64" json:"sku"`

	Quantity int              `gorm:"not null;default:1" json:"quantity"`
	Total    *decimal.Decimal `gorm:"type:decimal(18,2)" json:"total"`

	Marking   *string `gorm:"size:64" json:"marking"`
	StoreName *string `gorm:"size:128" json:"store_name"`

	Region   *string `gorm:"size:128" json:"region"`
	District *string `gorm:"size:128" json:"district"`
	Inn      *string `gorm:"size:32" json:"inn"`

	Period           *int    `json:"period"`
	FirstPaymentDate *string `gorm:"size:64" json:"first_payment_date"`
	ApprovalDate     *string `gorm:"size:64" json:"approval_date"`

	PartnerName *string `gorm:"size:256" json:"partner_name"`
	Invoice     *string `gorm:"size:128" json:"invoice"`
	ReturnType  *string `gorm:"size:128" json:"return_type"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SalesFact is a deduplicated, business-key-grouped sales observation.
// The unique key deliberately excludes source_row_no: raw rows that agree
// on every business attribute fold into a single fact with qty = count.
type SalesFact struct {
	ID int `gorm:"primary_key" json:"id"`

	StoreId   *int    `gorm:"uniqueIndex:idx_sales_fact_group,priority:1" json:"store_id"`
	StoreName *string `gorm:"size:128" json:"store_name"`

	SaleDate      *time.Time `gorm:"type:date;uniqueIndex:idx_sales_fact_group,priority:2" json:"sale_date"`
	ApplicationId *int       `gorm:"uniqueIndex:idx_sales_fact_group,priority:3" json:"application_id"`

	Sku                 *string `gorm:"size:64;uniqueIndex:idx_sales_fact_group,priority:4" json:"sku"`
	ProductNameSnapshot *string `gorm:"type:text" json:"product_name_snapshot"`

	Qty int `gorm:"not null;default:0" json:"qty"`

	Price *decimal.Decimal `gorm:"type:decimal(18,2);uniqueIndex:idx_sales_fact_group,priority:5" json:"price"`
	Total *decimal.Decimal `gorm:"type:decimal(18,2);uniqueIndex:idx_sales_fact_group,priority:6" json:"total"`

	Invoice    *string `gorm:"size:128;uniqueIndex:idx_sales_fact_group,priority:7" json:"invoice"`
	ReturnType *string `gorm:"size:128;uniqueIndex:idx_sales_fact_group,priority:8" json:"return_type"`

	Status string `gorm:"size:16;not null;default:active" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SkuRegistry catalogs every distinct product identifier ever observed.
// Ingestion only refreshes last_seen_*; status is advanced by the external
// catalog resolver, never here.
type SkuRegistry struct {
	ID      int    `gorm:"primary_key" json:"id"`
	StoreId *int   `gorm:"uniqueIndex:idx_store_sku,priority:1" json:"store_id"`
	Sku     string `gorm:"size:64;uniqueIndex:idx_store_sku,priority:2;not null" json:"sku"`

	Status string `gorm:"size:16;not null;default:unknown" json:"status"`

	FirstSeenAt time.Time `gorm:"not null" json:"first_seen_at"`
	LastSeenAt  time.Time `gorm:"not null" json:"last_seen_at"`

	LastSeenTitle *string `gorm:"type:text" json:"last_seen_title"`

	ResolvedOfferId *string `gorm:"size:64" json:"resolved_offer_id"`
	ResolvedItemId  *int    `json:"resolved_item_id"`
}

func (SkuRegistry) TableName() string {
	return "sku_registry"
}
