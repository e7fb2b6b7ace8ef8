package alifsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Export layout: an unlabeled row-sequence column followed by exactly
// these 19 fields, in this order.
var expectedColumns = []string{
	"sale_date",
	"application_id",
	"client",
	"product_name",
	"price",
	"sku",
	"quantity",
	"total",
	"marking",
	"store_name",
	"region",
	"district",
	"inn",
	"period",
	"first_payment_date",
	"approval_date",
	"partner_name",
	"invoice",
	"return_type",
}

// exportColumnCount is the sequence-number column plus the 19 fields.
var exportColumnCount = len(expectedColumns) + 1

// Cancellation markers as the platform writes them.
const (
	invoiceReversalMarker = "Минусовая"
	fullReturnMarker      = "Полный"
)

// IngestSummary reports what one ingestion call did. RawInserted can be
// lower than RawInFile on a re-run: duplicates are silently dropped.
type IngestSummary struct {
	ReportRunId  int `json:"report_run_id"`
	RawInFile    int `json:"raw_in_file"`
	RawInserted  int `json:"raw_inserted"`
	FactGroups   int `json:"fact_groups"`
	FactUpserted int `json:"fact_upserted"`
	SkuUpserted  int `json:"sku_upserted"`
}

// IngestEngine parses a downloaded export, persists raw rows with
// row-level dedup, re-aggregates the run's full raw set into sales facts,
// and maintains the SKU registry. Ingestion is serialized per run:
// aggregation reads the complete current raw set, so two interleaved
// ingests of the same run could miss or double-count rows.
type IngestEngine struct {
	db     *gorm.DB
	logger *logrus.Logger

	mu       sync.Mutex
	runLocks map[int]*sync.Mutex

	now func() time.Time
}

func NewIngestEngine(db *gorm.DB, logger *logrus.Logger) *IngestEngine {
	return &IngestEngine{
		db:       db,
		logger:   logger,
		runLocks: map[int]*sync.Mutex{},
		now:      time.Now,
	}
}

func (e *IngestEngine) runLock(runId int) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l := e.runLocks[runId]
	if l == nil {
		l = &sync.Mutex{}
		e.runLocks[runId] = l
	}
	return l
}

// Ingest runs the full raw insert → reload → aggregate → upsert sequence
// for one run inside a single transaction. Either everything commits or
// nothing does.
func (e *IngestEngine) Ingest(ctx context.Context, reportRunId int, exportBytes []byte, storeId *int) (*IngestSummary, error) {
	l := e.runLock(reportRunId)
	l.Lock()
	defer l.Unlock()

	rawRows, err := e.parseExport(reportRunId, exportBytes)
	if err != nil {
		return nil, err
	}

	summary := &IngestSummary{
		ReportRunId: reportRunId,
		RawInFile:   len(rawRows),
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rawRows) > 0 {
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "report_run_id"}, {Name: "source_row_no"}},
				DoNothing: true,
			}).Create(&rawRows)
			if res.Error != nil {
				return res.Error
			}
			summary.RawInserted = int(res.RowsAffected)
		}

		// Aggregation always reads the run's full raw set, not just the
		// newly inserted rows. Recomputing everything keeps repeated
		// ingests idempotent and self-correcting.
		var all []models.RawSalesRow
		if err := tx.Where("report_run_id = ?", reportRunId).
			Order("source_row_no ASC").
			Find(&all).Error; err != nil {
			return err
		}

		facts := buildFacts(all, storeId)
		summary.FactGroups = len(facts)
		upserted, err := upsertFacts(tx, facts)
		if err != nil {
			return err
		}
		summary.FactUpserted = upserted

		skus := e.buildSkuRows(all, storeId)
		upserted, err = upsertSkuRegistry(tx, skus)
		if err != nil {
			return err
		}
		summary.SkuUpserted = upserted

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"module":      "alifsync",
		"reportRunId": reportRunId,
		"rawInFile":   summary.RawInFile,
		"rawInserted": summary.RawInserted,
		"factGroups":  summary.FactGroups,
		"skuUpserted": summary.SkuUpserted,
	}).Info("ingest finished")

	return summary, nil
}

// parseExport reads sheet 0 and maps each data row to a RawSalesRow.
// Only the column count is validated; the platform does not localize the
// column order, just the headers.
func (e *IngestEngine) parseExport(reportRunId int, exportBytes []byte) ([]models.RawSalesRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(exportBytes))
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &SchemaError{Expected: exportColumnCount, Actual: 0}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Expected: exportColumnCount, Actual: 0}
	}

	header := rows[0]
	if len(header) != exportColumnCount {
		return nil, &SchemaError{Expected: exportColumnCount, Actual: len(header)}
	}

	out := make([]models.RawSalesRow, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		// excelize trims trailing empty cells; pad back to full width.
		if len(cells) < exportColumnCount {
			padded := make([]string, exportColumnCount)
			copy(padded, cells)
			cells = padded
		}

		row := models.RawSalesRow{
			ReportRunId: reportRunId,
			SourceRowNo: intOrZero(ParseCount(cells[0])),

			SaleDate:      ParseDate(cells[1]),
			ApplicationId: ParseCount(cells[2]),

			Client:      CleanText(cells[3]),
			ProductName: CleanText(cells[4]),

			Price: ParseAmount(cells[5]),
			Sku:   NormalizeSku(cells[6]),

			Quantity: intOrDefault(ParseCount(cells[7]), 1),
			Total:    ParseAmount(cells[8]),

			Marking:   CleanText(cells[9]),
			StoreName: CleanText(cells[10]),

			Region:   CleanText(cells[11]),
			District: CleanText(cells[12]),
			Inn:      CleanText(cells[13]),

			Period:           ParseCount(cells[14]),
			FirstPaymentDate: CleanText(cells[15]),
			ApprovalDate:     CleanText(cells[16]),

			PartnerName: CleanText(cells[17]),
			Invoice:     CleanText(cells[18]),
			ReturnType:  CleanText(cells[19]),
		}
		out = append(out, row)
	}
	return out, nil
}

// deriveStatus marks a raw row canceled when its invoice is the reversal
// marker or its return type is the full-return marker.
func deriveStatus(invoice, returnType *string) string {
	if invoice != nil && *invoice == invoiceReversalMarker {
		return models.FactStatusCanceled
	}
	if returnType != nil && *returnType == fullReturnMarker {
		return models.FactStatusCanceled
	}
	return models.FactStatusActive
}

type factGroup struct {
	row      models.RawSalesRow
	status   string
	qty      int
	snapshot *string
}

// buildFacts groups the raw set at business-key granularity. A single file
// can carry business-duplicates under distinct row numbers; those fold
// into one fact with qty = row count. The product-name snapshot is the
// last one seen in file order.
func buildFacts(all []models.RawSalesRow, storeId *int) []models.SalesFact {
	groups := map[string]*factGroup{}
	order := []string{}

	for _, r := range all {
		status := deriveStatus(r.Invoice, r.ReturnType)
		key := strings.Join([]string{
			textKey(r.StoreName),
			dateKey(r.SaleDate),
			intKey(r.ApplicationId),
			textKey(r.Sku),
			amountKey(r.Price),
			amountKey(r.Total),
			textKey(r.Invoice),
			textKey(r.ReturnType),
			status,
		}, "\x1f")

		g := groups[key]
		if g == nil {
			g = &factGroup{row: r, status: status}
			groups[key] = g
			order = append(order, key)
		}
		g.qty++
		if r.ProductName != nil {
			g.snapshot = r.ProductName
		}
	}

	facts := make([]models.SalesFact, 0, len(order))
	for _, key := range order {
		g := groups[key]
		facts = append(facts, models.SalesFact{
			StoreId:             storeId,
			StoreName:           g.row.StoreName,
			SaleDate:            g.row.SaleDate,
			ApplicationId:       g.row.ApplicationId,
			Sku:                 g.row.Sku,
			ProductNameSnapshot: g.snapshot,
			Qty:                 g.qty,
			Price:               g.row.Price,
			Total:               g.row.Total,
			Invoice:             g.row.Invoice,
			ReturnType:          g.row.ReturnType,
			Status:              g.status,
		})
	}
	return facts
}

// buildSkuRows groups the raw set by SKU alone, keeping the last-seen
// title. Rows without a SKU carry nothing for the registry.
func (e *IngestEngine) buildSkuRows(all []models.RawSalesRow, storeId *int) []models.SkuRegistry {
	titles := map[string]*string{}
	for _, r := range all {
		if r.Sku == nil || *r.Sku == "" {
			continue
		}
		if _, ok := titles[*r.Sku]; !ok {
			titles[*r.Sku] = nil
		}
		if r.ProductName != nil {
			titles[*r.Sku] = r.ProductName
		}
	}

	skus := make([]string, 0, len(titles))
	for sku := range titles {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	now := e.now()
	rows := make([]models.SkuRegistry, 0, len(skus))
	for _, sku := range skus {
		rows = append(rows, models.SkuRegistry{
			StoreId:       storeId,
			Sku:           sku,
			Status:        models.SkuStatusUnknown,
			FirstSeenAt:   now,
			LastSeenAt:    now,
			LastSeenTitle: titles[sku],
		})
	}
	return rows
}

// nullSafeEq builds an equality predicate where NULL matches NULL. The
// fact and registry business keys contain nullable columns; a plain
// unique-index upsert would treat every NULL as distinct and re-ingesting
// would duplicate rows instead of replacing them. The value must be bound
// twice.
func nullSafeEq(col string) string {
	return fmt.Sprintf("(%s = ? OR (%s IS NULL AND ? IS NULL))", col, col)
}

// upsertFacts replaces the mutable fields (qty, snapshot, status) of every
// existing fact matched by its business key, and inserts the rest. A full
// overwrite, not an increment: the values are derived from the complete
// current raw set.
func upsertFacts(tx *gorm.DB, facts []models.SalesFact) (int, error) {
	written := 0
	for i := range facts {
		f := &facts[i]

		var existing models.SalesFact
		err := tx.
			Where(nullSafeEq("store_id"), f.StoreId, f.StoreId).
			Where(nullSafeEq("sale_date"), f.SaleDate, f.SaleDate).
			Where(nullSafeEq("application_id"), f.ApplicationId, f.ApplicationId).
			Where(nullSafeEq("sku"), f.Sku, f.Sku).
			Where(nullSafeEq("price"), f.Price, f.Price).
			Where(nullSafeEq("total"), f.Total, f.Total).
			Where(nullSafeEq("invoice"), f.Invoice, f.Invoice).
			Where(nullSafeEq("return_type"), f.ReturnType, f.ReturnType).
			Select("id").Take(&existing).Error
		switch {
		case err == nil:
			res := tx.Model(&models.SalesFact{}).Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"qty":                   f.Qty,
					"product_name_snapshot": f.ProductNameSnapshot,
					"status":                f.Status,
				})
			if res.Error != nil {
				return written, res.Error
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if cerr := tx.Create(f).Error; cerr != nil {
				return written, cerr
			}
		default:
			return written, err
		}
		written++
	}
	return written, nil
}

// upsertSkuRegistry refreshes last_seen_title/last_seen_at for known SKUs
// and registers new ones with status unknown. Status is never touched for
// existing rows; only the external resolver advances it.
func upsertSkuRegistry(tx *gorm.DB, skus []models.SkuRegistry) (int, error) {
	written := 0
	for i := range skus {
		s := &skus[i]

		var existing models.SkuRegistry
		err := tx.
			Where(nullSafeEq("store_id"), s.StoreId, s.StoreId).
			Where("sku = ?", s.Sku).
			Select("id").Take(&existing).Error
		switch {
		case err == nil:
			res := tx.Model(&models.SkuRegistry{}).Where("id = ?", existing.ID).
				Updates(map[string]interface{}{
					"last_seen_title": s.LastSeenTitle,
					"last_seen_at":    s.LastSeenAt,
				})
			if res.Error != nil {
				return written, res.Error
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if cerr := tx.Create(s).Error; cerr != nil {
				return written, cerr
			}
		default:
			return written, err
		}
		written++
	}
	return written, nil
}

// Group-key helpers: render each nullable field into a stable string so
// absent and empty never collide.

func textKey(v *string) string {
	if v == nil {
		return "\x00"
	}
	return *v
}

func intKey(v *int) string {
	if v == nil {
		return "\x00"
	}
	return fmt.Sprint(*v)
}

func dateKey(v *time.Time) string {
	if v == nil {
		return "\x00"
	}
	return v.Format("2006-01-02")
}

func amountKey(v *decimal.Decimal) string {
	if v == nil {
		return "\x00"
	}
	return v.String()
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
