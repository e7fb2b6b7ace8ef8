package alifsync

import (
	"errors"
	"io"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/config"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateAccountHandler registers a merchant account. The password is
// encrypted before it ever touches the database.
func CreateAccountHandler(db *gorm.DB, codec *utils.SecretCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AccountCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		passwordEnc, err := codec.EncryptString(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		acc := models.MerchantAccount{
			AccountType: req.AccountType,
			Username:    req.Username,
			PasswordEnc: passwordEnc,
			StoreId:     req.StoreId,
			StoreName:   req.StoreName,
		}
		if err := db.WithContext(c.Request.Context()).Create(&acc).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, AccountCreateResponse{
			Id:          acc.ID,
			AccountType: acc.AccountType,
			Username:    acc.Username,
		})
	}
}

// SyncStoresHandler triggers a store-directory sync against the platform.
func SyncStoresHandler(syncer *StoreSyncer) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := syncer.Sync(c.Request.Context())
		if err != nil {
			if errors.Is(err, ErrMainAccountNotFound) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ReportRunHandler runs the full report-and-ingest pipeline synchronously
// and returns the run summary.
func ReportRunHandler(pipeline *Pipeline, cfg *config.Config, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := ReportRunRequest{
			TypeId:     12,
			PollSec:    cfg.DefaultPollSeconds,
			TimeoutSec: cfg.DefaultTimeoutSeconds,
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if req.PollSec <= 0 {
			req.PollSec = cfg.DefaultPollSeconds
		}
		if req.TimeoutSec <= 0 {
			req.TimeoutSec = cfg.DefaultTimeoutSeconds
		}

		dateFrom, _ := time.Parse("2006-01-02", req.DateFrom)
		dateTo, _ := time.Parse("2006-01-02", req.DateTo)

		summary, err := pipeline.Run(
			c.Request.Context(),
			req.TypeId,
			dateFrom,
			dateTo,
			time.Duration(req.PollSec)*time.Second,
			time.Duration(req.TimeoutSec)*time.Second,
		)
		if err != nil {
			config.LogError(logger, "alifsync", "ReportRunHandler", "pipeline run", req, err)
			c.JSON(statusForPipelineError(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func statusForPipelineError(err error) int {
	var timeout *ReportTimeoutError
	var failed *ReportFailedError
	var schema *SchemaError
	var auth *AuthError
	switch {
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &failed), errors.As(err, &auth):
		return http.StatusBadGateway
	case errors.As(err, &schema):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrMainAccountNotFound):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// IngestHandler re-ingests an uploaded export by hand. The upload gets its
// own manual ReportRun so raw rows always have an owning run.
func IngestHandler(db *gorm.DB, engine *IngestEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		today := time.Now().UTC().Truncate(24 * time.Hour)
		run := models.ReportRun{
			ReportId: "manual-" + uuid.NewString(),
			TypeId:   0,
			DateFrom: today,
			DateTo:   today,
			Status:   models.ReportRunStatusIngesting,
		}
		if err := db.WithContext(ctx).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		summary, err := engine.Ingest(ctx, run.ID, content, nil)
		if err != nil {
			var schema *SchemaError
			if errors.As(err, &schema) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := db.WithContext(ctx).Model(&models.ReportRun{}).
			Where("id = ?", run.ID).
			Update("status", models.ReportRunStatusIngested).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}
