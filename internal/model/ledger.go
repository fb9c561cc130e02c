package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 账变原因
const (
	LedgerReasonDeposit          = "DEPOSIT"           // 手动/测试入金
	LedgerReasonSweepCredit      = "SWEEP_CREDIT"      // 临时钱包归集入账
	LedgerReasonPayoutAccrual    = "PAYOUT_ACCRUAL"    // 收益复投入账（flexible）
	LedgerReasonReferralBonus    = "REFERRAL_BONUS"    // 推荐返佣入账
	LedgerReasonWithdrawalDebit  = "WITHDRAWAL_DEBIT"  // 提现冻结扣款
	LedgerReasonWithdrawalRefund = "WITHDRAWAL_REFUND" // 提现失败/取消返还
)

// LedgerEntry 账变流水表
// 记录账户的每一笔资金变动，是对账的核心依据。
//
// 流水表设计原则：
// 1. 只追加，不修改，不删除
// 2. 每笔流水必须关联产生它的业务记录（reference_type + reference_id）
// 3. 记录交易前后余额，便于校验余额一致性
type LedgerEntry struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	AccountID     int64           `gorm:"index;not null" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"amount"` // 正数入账，负数出账
	Reason        string          `gorm:"type:varchar(32);not null" json:"reason"`
	ReferenceType string          `gorm:"type:varchar(32);not null" json:"reference_type"` // 业务记录类型
	ReferenceID   string          `gorm:"type:varchar(64);not null" json:"reference_id"`   // 业务记录ID
	BalanceBefore decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(30,8);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entry"
}
