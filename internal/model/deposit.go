package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit 入金记录表
// tx_hash 全局唯一（为空仅限手动/测试入金），一条记录只入账一次。
type Deposit struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64           `gorm:"index;not null" json:"account_id"`
	Strategy  string          `gorm:"type:varchar(50);index;not null" json:"strategy"`
	Amount    decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"amount"`
	TxHash    *string         `gorm:"type:varchar(256);uniqueIndex" json:"tx_hash"`
	CreatedAt time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Deposit) TableName() string {
	return "deposit"
}
