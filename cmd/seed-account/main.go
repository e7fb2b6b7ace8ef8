// Seeds the MAIN merchant account from env. Idempotent: an existing MAIN
// account with the same username is left untouched.
//
// Required env: SEED_MERCHANT_USERNAME, SEED_MERCHANT_PASSWORD, plus the
// usual DB_* and APP_SECRET_KEY.
package main

import (
	"errors"
	"log"
	"os"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/config"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/utils"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	username := os.Getenv("SEED_MERCHANT_USERNAME")
	password := os.Getenv("SEED_MERCHANT_PASSWORD")
	if username == "" || password == "" {
		log.Fatal("SEED_MERCHANT_USERNAME and SEED_MERCHANT_PASSWORD are required")
	}

	codec, err := utils.NewSecretCodec(cfg.AppSecretKey)
	if err != nil {
		log.Fatalf("secret codec: %v", err)
	}

	db := config.ConnectDatabaseWithRetry(cfg)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var existing models.MerchantAccount
	err = db.Where("account_type = ? AND username = ?", models.AccountTypeMain, username).
		First(&existing).Error
	if err == nil {
		log.Printf("main account already exists (id=%d), nothing to do", existing.ID)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("lookup main account: %v", err)
	}

	passwordEnc, err := codec.EncryptString(password)
	if err != nil {
		log.Fatalf("encrypt password: %v", err)
	}

	acc := models.MerchantAccount{
		AccountType: models.AccountTypeMain,
		Username:    username,
		PasswordEnc: passwordEnc,
	}
	if err := db.Create(&acc).Error; err != nil {
		log.Fatalf("create account: %v", err)
	}
	log.Printf("created main account id=%d username=%s", acc.ID, acc.Username)
}
