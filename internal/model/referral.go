package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferralSettings 推荐返佣全局设置
// 同一时刻只使用一条 is_active 的记录，不存在时按默认值创建。
type ReferralSettings struct {
	ID                   int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Level1Percent        decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0.07" json:"level_1_percent"`
	Level2Percent        decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0.03" json:"level_2_percent"`
	AccrualIntervalHours int             `gorm:"not null;default:12" json:"accrual_interval_hours"`
	IsActive             bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReferralSettings) TableName() string {
	return "referral_settings"
}

// 返佣级别
const (
	ReferralLevel1 = 1
	ReferralLevel2 = 2
)

// ReferralAccrual 推荐返佣记录表
//
// (recipient, level, strategy, source_model, source_object_id) 唯一约束
// 是防止对同一笔收益重复返佣的幂等键：重跑重叠的时间窗口时，
// 重复插入被唯一键拒绝并视为已完成，而非错误。
type ReferralAccrual struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID        int64           `gorm:"uniqueIndex:idx_referral_identity;index:idx_recipient_created;not null" json:"recipient_id"` // 返佣接收人
	SourceUserID       int64           `gorm:"index;not null" json:"source_user_id"`                                                       // 产生收益的用户
	Level              int             `gorm:"uniqueIndex:idx_referral_identity;not null" json:"level"`
	Strategy           string          `gorm:"type:varchar(50);uniqueIndex:idx_referral_identity;not null" json:"strategy"`
	Amount             decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"amount"`
	SourceProfitAmount decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"source_profit_amount"`
	Percentage         decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"percentage"`
	SourceModel        string          `gorm:"type:varchar(100);uniqueIndex:idx_referral_identity;not null" json:"source_model"`
	SourceObjectID     string          `gorm:"type:varchar(50);uniqueIndex:idx_referral_identity;not null" json:"source_object_id"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index:idx_recipient_created" json:"created_at"`
}

func (ReferralAccrual) TableName() string {
	return "referral_accrual"
}
