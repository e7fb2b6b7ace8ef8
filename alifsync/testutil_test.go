package alifsync

import (
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB opens a private in-memory database with the full schema.
// cache=shared plus a single pooled connection keeps the database alive
// for the whole test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:alifsync_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestCodec(t *testing.T) *utils.SecretCodec {
	t.Helper()
	codec, err := utils.NewSecretCodec("unit-test-secret")
	if err != nil {
		t.Fatalf("NewSecretCodec: %v", err)
	}
	return codec
}

func seedMainAccount(t *testing.T, db *gorm.DB, codec *utils.SecretCodec, password string) *models.MerchantAccount {
	t.Helper()
	enc, err := codec.EncryptString(password)
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	acc := &models.MerchantAccount{
		AccountType: models.AccountTypeMain,
		Username:    "merchant@test",
		PasswordEnc: enc,
	}
	if err := db.Create(acc).Error; err != nil {
		t.Fatalf("seed main account: %v", err)
	}
	return acc
}

func createRun(t *testing.T, db *gorm.DB) *models.ReportRun {
	t.Helper()
	run := &models.ReportRun{
		ReportId: "test-report",
		TypeId:   12,
		DateFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:   models.ReportRunStatusIngesting,
	}
	if err := db.Create(run).Error; err != nil {
		t.Fatalf("create report run: %v", err)
	}
	return run
}

// buildExport renders a workbook with the platform's column layout: a
// header row (row-number column plus the 19 field names) followed by the
// given data rows.
func buildExport(t *testing.T, dataRows [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := append([]string{"№"}, expectedColumns...)
	writeSheetRow(t, f, sheet, 1, header)
	for i, row := range dataRows {
		writeSheetRow(t, f, sheet, i+2, row)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func writeSheetRow(t *testing.T, f *excelize.File, sheet string, rowNo int, cells []string) {
	t.Helper()
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowNo), &values); err != nil {
		t.Fatalf("SetSheetRow row %d: %v", rowNo, err)
	}
}

// exportRow builds one 20-cell data row. Only the business fields tests
// care about are parameters; the rest stay empty.
func exportRow(rowNo, saleDate, appId, product, price, sku, qty, total, storeName, invoice, returnType string) []string {
	return []string{
		rowNo,      // row number
		saleDate,   // sale_date
		appId,      // application_id
		"Client",   // client
		product,    // product_name
		price,      // price
		sku,        // sku
		qty,        // quantity
		total,      // total
		"",         // marking
		storeName,  // store_name
		"",         // region
		"",         // district
		"",         // inn
		"",         // period
		"",         // first_payment_date
		"",         // approval_date
		"",         // partner_name
		invoice,    // invoice
		returnType, // return_type
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }
