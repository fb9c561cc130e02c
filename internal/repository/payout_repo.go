package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

var ErrPayoutNotFound = errors.New("发放记录不存在")

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create 依赖 (account_id, period) 唯一键做幂等，
// 冲突时由调用方按 gorm.ErrDuplicatedKey 处理。
func (r *PayoutRepository) Create(ctx context.Context, tx *gorm.DB, payout *model.DailyPayout) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(payout).Error
}

func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*model.DailyPayout, error) {
	var payout model.DailyPayout
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &payout, nil
}

// UpdateResult 结算回调写入执行结果，只有这里能把 success 置为 true
// 成功是终态：迟到或重复的回调不能把 success 改回去、也不能覆盖 tx_hash，
// 对已成功记录的更新落空并按幂等成功返回。
func (r *PayoutRepository) UpdateResult(ctx context.Context, id int64, success bool, txHash *string) error {
	updates := map[string]interface{}{"success": success}
	if txHash != nil {
		updates["tx_hash"] = *txHash
	}
	result := r.db.WithContext(ctx).
		Model(&model.DailyPayout{}).
		Where("id = ? AND success = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		err := r.db.WithContext(ctx).
			Model(&model.DailyPayout{}).
			Where("id = ?", id).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrPayoutNotFound
		}
	}
	return nil
}

func (r *PayoutRepository) ListByAccountID(ctx context.Context, accountID int64, limit int) ([]*model.DailyPayout, error) {
	var payouts []*model.DailyPayout
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

// ListByStrategyWindow 返佣引擎扫描窗口 [start, end) 内的收益记录
func (r *PayoutRepository) ListByStrategyWindow(ctx context.Context, strategy string, start, end time.Time) ([]*model.DailyPayout, error) {
	var payouts []*model.DailyPayout
	err := r.db.WithContext(ctx).
		Where("strategy = ? AND created_at >= ? AND created_at < ?", strategy, start, end).
		Order("created_at ASC").
		Find(&payouts).Error
	return payouts, err
}
