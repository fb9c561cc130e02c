package repository

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

type DepositRepository struct {
	db *gorm.DB
}

func NewDepositRepository(db *gorm.DB) *DepositRepository {
	return &DepositRepository{db: db}
}

func (r *DepositRepository) Create(ctx context.Context, tx *gorm.DB, deposit *model.Deposit) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(deposit).Error
}

// GetByTxHash tx_hash 全局唯一；不存在时返回 (nil, nil)
func (r *DepositRepository) GetByTxHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	var deposit model.Deposit
	err := r.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &deposit, nil
}

func (r *DepositRepository) ListByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.Deposit, error) {
	var deposits []*model.Deposit
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deposits).Error
	return deposits, err
}
