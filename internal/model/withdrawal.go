package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 提现请求状态
const (
	WithdrawalStatusPending    = "PENDING"
	WithdrawalStatusProcessing = "PROCESSING"
	WithdrawalStatusCompleted  = "COMPLETED"
	WithdrawalStatusFailed     = "FAILED"
	WithdrawalStatusCancelled  = "CANCELLED" // 仅在开始处理前可达
)

// ValidWithdrawalTransitions 提现状态迁移表
var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

// CanWithdrawalTransitionTo 校验提现状态迁移是否合法
func CanWithdrawalTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidWithdrawalTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// IsTerminalWithdrawalStatus 是否终态
func IsTerminalWithdrawalStatus(status string) bool {
	switch status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// WithdrawalRequest 提现请求表
//
// 余额在创建请求时一次性扣减（与请求记录同事务），
// 结算回调只改状态，不再二次扣款。
type WithdrawalRequest struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"` // UUID
	AccountID    int64           `gorm:"index;not null" json:"account_id"`
	Strategy     string          `gorm:"type:varchar(50);index;not null" json:"strategy"`
	Amount       decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"amount"`
	Network      string          `gorm:"type:varchar(20);not null" json:"network"`
	TargetWallet string          `gorm:"type:varchar(128);not null" json:"target_wallet"`
	Status       string          `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	TxHash       *string         `gorm:"type:varchar(256);uniqueIndex" json:"tx_hash"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message"`
	RequestedAt  time.Time       `gorm:"autoCreateTime;index" json:"requested_at"`
	ProcessedAt  *time.Time      `json:"processed_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_request"
}
