package alifsync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunSummary is what one end-to-end pipeline run returns.
type RunSummary struct {
	ReportRunId int            `json:"report_run_id"`
	ReportId    string         `json:"report_id"`
	DateFrom    string         `json:"date_from"`
	DateTo      string         `json:"date_to"`
	Ingest      *IngestSummary `json:"ingest"`
}

// Pipeline drives one report through generate → wait → download → ingest,
// committing a ReportRun transition after each phase. A crash between
// phases leaves the run visibly stalled at its last committed status
// instead of silently lost.
type Pipeline struct {
	db      *gorm.DB
	logger  *logrus.Logger
	reports *ReportService
	ingest  *IngestEngine
}

func NewPipeline(db *gorm.DB, logger *logrus.Logger, reports *ReportService, ingest *IngestEngine) *Pipeline {
	return &Pipeline{db: db, logger: logger, reports: reports, ingest: ingest}
}

func (p *Pipeline) setStatus(ctx context.Context, runId int, status string) error {
	return p.db.WithContext(ctx).
		Model(&models.ReportRun{}).
		Where("id = ?", runId).
		Update("status", status).Error
}

// Run executes one full report-and-ingest cycle. Inner-phase errors
// propagate unmodified; the run record stays at its last committed status.
func (p *Pipeline) Run(ctx context.Context, typeId int, dateFrom, dateTo time.Time, pollInterval, timeout time.Duration) (*RunSummary, error) {
	reportId, err := p.reports.Generate(ctx, typeId, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	run := models.ReportRun{
		ReportId: reportId,
		TypeId:   typeId,
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Status:   models.ReportRunStatusCreated,
	}
	if err := p.db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"module":      "alifsync",
		"reportRunId": run.ID,
		"reportId":    reportId,
	}).Info("report run created")

	if err := p.setStatus(ctx, run.ID, models.ReportRunStatusPending); err != nil {
		return nil, err
	}

	if err := p.reports.WaitSuccess(ctx, reportId, pollInterval, timeout); err != nil {
		var failed *ReportFailedError
		if errors.As(err, &failed) {
			// A timeout leaves the run at PENDING for later resumption;
			// a platform FAILED is final.
			if serr := p.setStatus(ctx, run.ID, models.ReportRunStatusFailed); serr != nil {
				p.logger.WithField("reportRunId", run.ID).Errorf("recording FAILED status: %v", serr)
			}
		}
		return nil, err
	}

	if err := p.setStatus(ctx, run.ID, models.ReportRunStatusSuccess); err != nil {
		return nil, err
	}

	content, err := p.reports.Download(ctx, reportId)
	if err != nil {
		return nil, err
	}

	if err := p.setStatus(ctx, run.ID, models.ReportRunStatusIngesting); err != nil {
		return nil, err
	}

	summary, err := p.ingest.Ingest(ctx, run.ID, content, run.StoreId)
	if err != nil {
		return nil, err
	}

	if err := p.setStatus(ctx, run.ID, models.ReportRunStatusIngested); err != nil {
		return nil, err
	}

	return &RunSummary{
		ReportRunId: run.ID,
		ReportId:    reportId,
		DateFrom:    dateFrom.Format("2006-01-02"),
		DateTo:      dateTo.Format("2006-01-02"),
		Ingest:      summary,
	}, nil
}
