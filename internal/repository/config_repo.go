package repository

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/gorm"
)

type ConfigRepository struct {
	db *gorm.DB
}

func NewConfigRepository(db *gorm.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// GetActive 获取策略的启用配置
// 缺失或停用都返回 (nil, nil)：对调度任务来说这是刻意的 no-op 信号，不是错误。
func (r *ConfigRepository) GetActive(ctx context.Context, strategy string) (*model.InvestmentConfig, error) {
	var cfg model.InvestmentConfig
	err := r.db.WithContext(ctx).
		Where("strategy = ? AND is_active = ?", strategy, true).
		Order("updated_at DESC").
		First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigRepository) Save(ctx context.Context, cfg *model.InvestmentConfig) error {
	return r.db.WithContext(ctx).Save(cfg).Error
}
