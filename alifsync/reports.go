package alifsync

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ReportService wraps the three external report operations. Every call
// resolves a fresh valid token for the MAIN account through the token
// manager; no token state is cached here.
type ReportService struct {
	db     *gorm.DB
	tm     *TokenManager
	client *Client
}

func NewReportService(db *gorm.DB, tm *TokenManager, client *Client) *ReportService {
	return &ReportService{db: db, tm: tm, client: client}
}

func (s *ReportService) mainToken(ctx context.Context) (string, error) {
	acc, err := MainAccount(ctx, s.db)
	if err != nil {
		return "", err
	}
	return s.tm.GetValidAccessToken(ctx, acc.ID)
}

func (s *ReportService) Generate(ctx context.Context, typeId int, dateFrom, dateTo time.Time) (string, error) {
	token, err := s.mainToken(ctx)
	if err != nil {
		return "", err
	}
	reportId, err := s.client.GenerateReport(ctx, token, typeId, dateFrom, dateTo)
	if err != nil {
		return "", &ReportError{Op: "generate", Err: err}
	}
	return reportId, nil
}

func (s *ReportService) Check(ctx context.Context, reportId string) (string, error) {
	token, err := s.mainToken(ctx)
	if err != nil {
		return "", err
	}
	status, err := s.client.CheckReport(ctx, token, reportId)
	if err != nil {
		return "", &ReportError{Op: "check", Err: err}
	}
	return status, nil
}

func (s *ReportService) Download(ctx context.Context, reportId string) ([]byte, error) {
	token, err := s.mainToken(ctx)
	if err != nil {
		return nil, err
	}
	content, err := s.client.DownloadReport(ctx, token, reportId)
	if err != nil {
		return nil, &ReportError{Op: "download", Err: err}
	}
	return content, nil
}

// WaitSuccess polls the platform until the report reaches a terminal
// status. Only SUCCESS and FAILED are terminal; anything else (including
// UNKNOWN) means still running. Elapsed time is measured from loop start
// and checked after every poll, so a positive timeout always fires even if
// the platform never settles.
func (s *ReportService) WaitSuccess(ctx context.Context, reportId string, pollInterval, timeout time.Duration) error {
	start := time.Now()
	for {
		status, err := s.Check(ctx, reportId)
		if err != nil {
			return err
		}
		switch status {
		case "SUCCESS":
			return nil
		case "FAILED":
			return &ReportFailedError{ReportId: reportId}
		}

		if waited := time.Since(start); waited > timeout {
			return &ReportTimeoutError{ReportId: reportId, Waited: waited}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
