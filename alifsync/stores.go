package alifsync

import (
	"context"

	"bitbucket.org/mmdatafocus/merchant_sales_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreSyncResult reports a store-directory sync: how many entries the
// platform returned and how many were written.
type StoreSyncResult struct {
	Count    int `json:"count"`
	Upserted int `json:"upserted"`
}

// StoreSyncer mirrors the platform's store directory into the stores
// table. Plain list-and-upsert, keyed on the platform's store id.
type StoreSyncer struct {
	db     *gorm.DB
	tm     *TokenManager
	client *Client
}

func NewStoreSyncer(db *gorm.DB, tm *TokenManager, client *Client) *StoreSyncer {
	return &StoreSyncer{db: db, tm: tm, client: client}
}

func (s *StoreSyncer) Sync(ctx context.Context) (*StoreSyncResult, error) {
	acc, err := MainAccount(ctx, s.db)
	if err != nil {
		return nil, err
	}
	token, err := s.tm.GetValidAccessToken(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	entries, err := s.client.ListStores(ctx, token)
	if err != nil {
		return nil, err
	}

	stores := make([]models.Store, 0, len(entries))
	for _, entry := range entries {
		id := entry.Id
		if id == nil {
			id = entry.StoreId
		}
		name := entry.Name
		if name == "" {
			name = entry.Title
		}
		if id == nil || name == "" {
			continue
		}
		stores = append(stores, models.Store{ID: *id, Name: name})
	}

	result := &StoreSyncResult{Count: len(entries)}
	if len(stores) == 0 {
		return result, nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&stores)
	if res.Error != nil {
		return nil, res.Error
	}
	result.Upserted = len(stores)

	return result, nil
}
