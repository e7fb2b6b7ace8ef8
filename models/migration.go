package models

import "gorm.io/gorm"

// AutoMigrate creates/updates every table this service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&MerchantAccount{},
		&Store{},
		&ReportRun{},
		&RawSalesRow{},
		&SalesFact{},
		&SkuRegistry{},
	)
}
