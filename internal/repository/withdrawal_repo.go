package repository

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

var ErrWithdrawalNotFound = errors.New("提现请求不存在")

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, request *model.WithdrawalRequest) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(request).Error
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*model.WithdrawalRequest, error) {
	if tx == nil {
		tx = r.db
	}
	var request model.WithdrawalRequest
	err := tx.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &request, nil
}

// UpdateStatus 条件更新：仅当当前状态仍是 fromStatus 时生效，
// 并发回调重复投递时第二次更新落空（RowsAffected==0）。
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, id, fromStatus string, fields map[string]interface{}) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *WithdrawalRepository) ListByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.WithdrawalRequest, error) {
	var requests []*model.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("requested_at DESC").
		Limit(limit).
		Find(&requests).Error
	return requests, err
}
