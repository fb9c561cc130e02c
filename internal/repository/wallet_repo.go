package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

var ErrWalletNotFound = errors.New("临时钱包不存在")

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *model.TemporaryWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *WalletRepository) GetByID(ctx context.Context, id int64) (*model.TemporaryWallet, error) {
	var wallet model.TemporaryWallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByAddress(ctx context.Context, address string) (*model.TemporaryWallet, error) {
	var wallet model.TemporaryWallet
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *WalletRepository) GetByAddressNetwork(ctx context.Context, address, network string) (*model.TemporaryWallet, error) {
	var wallet model.TemporaryWallet
	err := r.db.WithContext(ctx).
		Where("address = ? AND network = ?", address, network).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// UpdateFields 更新指定字段（updated_at 由 gorm 维护）
func (r *WalletRepository) UpdateFields(ctx context.Context, tx *gorm.DB, id int64, fields map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.TemporaryWallet{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ListPendingDeposit 等待充值的钱包（供 worker 轮询监控）
func (r *WalletRepository) ListPendingDeposit(ctx context.Context, limit int) ([]*model.TemporaryWallet, error) {
	var wallets []*model.TemporaryWallet
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WalletStatusPendingDeposit).
		Order("created_at ASC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}

func (r *WalletRepository) ListByUser(ctx context.Context, userID int64, strategy string, limit int) ([]*model.TemporaryWallet, error) {
	var wallets []*model.TemporaryWallet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND strategy = ?", userID, strategy).
		Order("created_at DESC").
		Limit(limit).
		Find(&wallets).Error
	return wallets, err
}

// ExpirePending 批量把超时未充值的钱包置为 expired，返回影响行数
func (r *WalletRepository) ExpirePending(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TemporaryWallet{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.WalletStatusPendingDeposit, now).
		Update("status", model.WalletStatusExpired)
	return result.RowsAffected, result.Error
}
