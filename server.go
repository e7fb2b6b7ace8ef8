package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/alifsync"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/config"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"bitbucket.org/mmdatafocus/merchant_sales_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := config.NewLogger()

	codec, err := utils.NewSecretCodec(cfg.AppSecretKey)
	if err != nil {
		log.Fatalf("secret codec: %v", err)
	}

	// SIGTERM handling for graceful drain on redeploys.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db := config.ConnectDatabaseWithRetry(cfg)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	client := alifsync.NewClient(cfg)
	tm := alifsync.NewTokenManager(db, codec, client)
	reports := alifsync.NewReportService(db, tm, client)
	ingest := alifsync.NewIngestEngine(db, logger)
	pipeline := alifsync.NewPipeline(db, logger, reports, ingest)
	storeSyncer := alifsync.NewStoreSyncer(db, tm, client)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	// Correlation IDs: generate once per request.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	r.POST("/accounts", alifsync.CreateAccountHandler(db, codec))
	r.POST("/stores/sync", alifsync.SyncStoresHandler(storeSyncer))
	r.POST("/sales/report-run", alifsync.ReportRunHandler(pipeline, cfg, logger))
	r.POST("/sales/ingest", alifsync.IngestHandler(db, ingest))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-sigCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
