package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 临时充值钱包状态
const (
	WalletStatusPendingGeneration = "pending_generation" // 等待外部结算服务生成地址
	WalletStatusPendingDeposit    = "pending_deposit"    // 等待用户充值
	WalletStatusDepositDetected   = "deposit_detected"   // 检测到充值，等待归集
	WalletStatusSweepInitiated    = "sweep_initiated"    // 归集已发起
	WalletStatusSweepSuccess      = "sweep_success"      // 归集成功（终态）
	WalletStatusSweepFailed       = "sweep_failed"       // 归集失败（终态）
	WalletStatusExpired           = "expired"            // 超时未充值（终态）
	WalletStatusError             = "error"              // 处理出错（终态）
)

// ValidWalletTransitions 临时钱包合法状态迁移表
// 终态（sweep_success / sweep_failed / expired / error）不再迁出。
var ValidWalletTransitions = map[string][]string{
	WalletStatusPendingGeneration: {WalletStatusPendingDeposit, WalletStatusError},
	WalletStatusPendingDeposit:    {WalletStatusDepositDetected, WalletStatusExpired, WalletStatusError},
	WalletStatusDepositDetected:   {WalletStatusSweepInitiated, WalletStatusSweepSuccess, WalletStatusSweepFailed, WalletStatusError},
	WalletStatusSweepInitiated:    {WalletStatusSweepSuccess, WalletStatusSweepFailed, WalletStatusError},
}

// CanWalletTransitionTo 校验钱包状态迁移是否合法
func CanWalletTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := ValidWalletTransitions[currentStatus]
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

// TemporaryWallet 临时充值钱包表
// encrypted_private_key 是外部结算服务加密后的不透明数据，本服务只存储转发，从不解读。
type TemporaryWallet struct {
	ID                  int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID              int64            `gorm:"index;not null" json:"user_id"`
	Strategy            string           `gorm:"type:varchar(50);index;not null" json:"strategy"`
	Network             string           `gorm:"type:varchar(20);index;not null" json:"network"`
	Address             *string          `gorm:"type:varchar(128);uniqueIndex" json:"address"` // 生成前为空
	EncryptedPrivateKey string           `gorm:"type:text" json:"-"`
	Status              string           `gorm:"type:varchar(30);index;not null;default:pending_generation" json:"status"`
	DetectedAmount      *decimal.Decimal `gorm:"type:decimal(30,8)" json:"detected_amount"`
	DepositTxHash       *string          `gorm:"type:varchar(256)" json:"deposit_tx_hash"`
	SweepTxID           *string          `gorm:"type:varchar(256)" json:"sweep_tx_id"`
	ErrorMessage        *string          `gorm:"type:text" json:"error_message"`
	ExpiresAt           *time.Time       `gorm:"index" json:"expires_at"`
	CreatedAt           time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt           time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TemporaryWallet) TableName() string {
	return "temporary_wallet"
}
