package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentConfig 策略参数配置表
// 每个策略一条；is_active=false 或记录缺失时该策略的收益发放整体停摆（刻意的 no-op），
// 绝不回退到陈旧默认值。
type InvestmentConfig struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Strategy   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"strategy"`
	PayoutRate decimal.Decimal `gorm:"type:decimal(6,5);not null;default:0.0012" json:"payout_rate"` // 日利率（如 0.0012 = 0.12%/天）
	LockDays   int             `gorm:"not null;default:30" json:"lock_days"`
	MinDeposit decimal.Decimal `gorm:"type:decimal(30,8);not null;default:100" json:"min_deposit"`
	IsActive   bool            `gorm:"not null;default:true" json:"is_active"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InvestmentConfig) TableName() string {
	return "investment_config"
}
