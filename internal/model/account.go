package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 支持的链网络
const (
	NetworkTRC20    = "TRC20"
	NetworkBEP20    = "BEP20"
	NetworkArbitrum = "ARBITRUM"
)

// InvestmentAccount 投资账户表
// 按 (用户, 网络, 策略) 唯一，余额是整个结算系统的核心数据。
// 余额只能通过 LedgerService 的 Credit/Debit 原语修改。
type InvestmentAccount struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64           `gorm:"uniqueIndex:idx_user_network_strategy;not null" json:"user_id"`
	Network             string          `gorm:"type:varchar(20);uniqueIndex:idx_user_network_strategy;not null" json:"network"`
	Strategy            string          `gorm:"type:varchar(50);uniqueIndex:idx_user_network_strategy;not null" json:"strategy"`
	Balance             decimal.Decimal `gorm:"type:decimal(30,8);not null;default:0" json:"balance"`
	Activated           bool            `gorm:"not null;default:false" json:"activated"`
	ActivationDate      *time.Time      `json:"activation_date"`
	LockDays            int             `gorm:"not null;default:30" json:"lock_days"`                // 激活时从策略配置快照
	TargetWallet        *string         `gorm:"type:varchar(128)" json:"target_wallet"`             // 收款地址（每日收益/提现目标）
	TargetWalletNetwork *string         `gorm:"type:varchar(20)" json:"target_wallet_network"`
	Version             int             `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	CreatedAt           time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InvestmentAccount) TableName() string {
	return "investment_account"
}

// IsLocked 账户是否处于锁定期
// 未激活视为锁定；激活后 lock_days 天内锁定。
func (a *InvestmentAccount) IsLocked(now time.Time) bool {
	if !a.Activated || a.ActivationDate == nil {
		return true
	}
	return now.Sub(*a.ActivationDate) < time.Duration(a.LockDays)*24*time.Hour
}

// UnlockDate 解锁日期 = 激活日期 + 锁定天数
func (a *InvestmentAccount) UnlockDate() *time.Time {
	if a.ActivationDate == nil {
		return nil
	}
	t := a.ActivationDate.Add(time.Duration(a.LockDays) * 24 * time.Hour)
	return &t
}

// HasTarget 是否配置了收款地址
func (a *InvestmentAccount) HasTarget() bool {
	return a.TargetWallet != nil && *a.TargetWallet != "" &&
		a.TargetWalletNetwork != nil && *a.TargetWalletNetwork != ""
}
