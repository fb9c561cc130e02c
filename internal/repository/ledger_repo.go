package repository

import (
	"context"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepository) ListByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
