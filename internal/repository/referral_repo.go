package repository

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetActiveSettings 获取启用中的返佣设置，不存在时创建默认值（7% / 3% / 12小时）
func (r *ReferralRepository) GetActiveSettings(ctx context.Context) (*model.ReferralSettings, error) {
	var settings model.ReferralSettings
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = model.ReferralSettings{
		Level1Percent:        decimal.NewFromFloat(0.07),
		Level2Percent:        decimal.NewFromFloat(0.03),
		AccrualIntervalHours: 12,
		IsActive:             true,
	}
	if err := r.db.WithContext(ctx).Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// CreateAccrual 插入返佣记录；五元组唯一键冲突由调用方按 gorm.ErrDuplicatedKey 处理
func (r *ReferralRepository) CreateAccrual(ctx context.Context, tx *gorm.DB, accrual *model.ReferralAccrual) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(accrual).Error
}

func (r *ReferralRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*model.ReferralAccrual, error) {
	var accruals []*model.ReferralAccrual
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&accruals).Error
	return accruals, err
}
