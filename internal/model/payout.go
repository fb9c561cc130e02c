package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPayout 收益发放记录表
//
// (account_id, period) 唯一约束是发放幂等性的唯一正确性保证：
// 调度任务可能并发重跑，查询和插入之间没有全局锁，
// 重复插入靠数据库唯一键拒绝，而不是靠查询去重。
//
// period 是结算周期键：
//   - 固定收益策略：按天，"2006-01-02"
//   - flexible 策略：按10分钟区间，"2006-01-02T15:04"（区间起点）
type DailyPayout struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64           `gorm:"uniqueIndex:idx_account_period;not null" json:"account_id"`
	Strategy  string          `gorm:"type:varchar(50);index:idx_strategy_created;not null" json:"strategy"`
	Period    string          `gorm:"type:varchar(20);uniqueIndex:idx_account_period;not null" json:"period"`
	Amount    decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"amount"`
	Success   bool            `gorm:"not null;default:false" json:"success"` // 仅由结算回调置为 true
	TxHash    *string         `gorm:"type:varchar(256)" json:"tx_hash"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index:idx_strategy_created" json:"created_at"`
}

func (DailyPayout) TableName() string {
	return "daily_payout"
}
