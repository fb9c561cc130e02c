package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/gateway"
	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validNetworks = map[string]bool{
	model.NetworkTRC20:    true,
	model.NetworkBEP20:    true,
	model.NetworkArbitrum: true,
}

// WalletService 临时充值钱包服务
//
// 钱包生命周期由状态机驱动（见 model.ValidWalletTransitions），
// 外部结算 worker 通过回调推进状态。检测到充值只登记不入账，
// 资金归集成功后才给账户余额入账。
type WalletService struct {
	db          *gorm.DB
	ledger      *LedgerService
	walletRepo  *repository.WalletRepository
	accountRepo *repository.AccountRepository
	depositRepo *repository.DepositRepository
	generator   gateway.AddressGenerator
	expiryHours int
}

func NewWalletService(db *gorm.DB, generator gateway.AddressGenerator, expiryHours int) *WalletService {
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &WalletService{
		db:          db,
		ledger:      NewLedgerService(db),
		walletRepo:  repository.NewWalletRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		depositRepo: repository.NewDepositRepository(db),
		generator:   generator,
		expiryHours: expiryHours,
	}
}

// RequestWallet 申请一个临时充值地址
// 先落 pending_generation 记录再调外部服务：生成失败时留下 error 记录可查，
// 不会出现"地址已发给用户但本地没有记录"的窗口。
func (s *WalletService) RequestWallet(ctx context.Context, userID int64, strategy, network string) (*model.TemporaryWallet, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	if !validNetworks[network] {
		return nil, apperr.New(apperr.KindValidation, "不支持的网络: "+network)
	}

	wallet := &model.TemporaryWallet{
		UserID:   userID,
		Strategy: strategy,
		Network:  network,
		Status:   model.WalletStatusPendingGeneration,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, err
	}

	generated, err := s.generator.GenerateAddress(ctx, network)
	if err != nil {
		msg := err.Error()
		if updateErr := s.walletRepo.UpdateFields(ctx, nil, wallet.ID, map[string]interface{}{
			"status":        model.WalletStatusError,
			"error_message": msg,
		}); updateErr != nil {
			log.Printf("标记钱包生成失败出错: wallet_id=%d, err=%v", wallet.ID, updateErr)
		}
		return nil, err
	}

	expiresAt := time.Now().Add(time.Duration(s.expiryHours) * time.Hour)
	err = s.walletRepo.UpdateFields(ctx, nil, wallet.ID, map[string]interface{}{
		"address":               generated.Address,
		"encrypted_private_key": generated.EncryptedPrivateKey,
		"status":                model.WalletStatusPendingDeposit,
		"expires_at":            expiresAt,
	})
	if err != nil {
		return nil, err
	}

	wallet.Address = &generated.Address
	wallet.EncryptedPrivateKey = generated.EncryptedPrivateKey
	wallet.Status = model.WalletStatusPendingDeposit
	wallet.ExpiresAt = &expiresAt
	return wallet, nil
}

// NotifyDeposit worker 回调：在临时地址上检测到充值
// 只登记入金记录并推进状态，不给账户入账——资金此时还没归集到主钱包。
// 同一笔链上交易的重复回调按幂等成功处理。
func (s *WalletService) NotifyDeposit(ctx context.Context, address, network string, amount decimal.Decimal, txHash string) (*model.TemporaryWallet, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "充值金额必须大于0")
	}
	if txHash == "" {
		return nil, apperr.New(apperr.KindValidation, "交易哈希不能为空")
	}

	wallet, err := s.walletRepo.GetByAddressNetwork(ctx, address, network)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "充值地址不存在")
		}
		return nil, err
	}

	// 重复回调：同一交易已登记过
	if wallet.DepositTxHash != nil && *wallet.DepositTxHash == txHash {
		return wallet, nil
	}

	if !model.CanWalletTransitionTo(wallet.Status, model.WalletStatusDepositDetected) {
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("钱包状态 %s 不接受充值通知", wallet.Status))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetOrCreate(ctx, tx, wallet.UserID, wallet.Network, wallet.Strategy)
		if err != nil {
			return err
		}

		deposit := &model.Deposit{
			AccountID: account.ID,
			Strategy:  wallet.Strategy,
			Amount:    amount,
			TxHash:    &txHash,
		}
		if err := s.depositRepo.Create(ctx, tx, deposit); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindDuplicateIdentity, "该交易哈希已登记")
			}
			return err
		}

		return s.walletRepo.UpdateFields(ctx, tx, wallet.ID, map[string]interface{}{
			"status":          model.WalletStatusDepositDetected,
			"detected_amount": amount,
			"deposit_tx_hash": txHash,
		})
	})
	if err != nil {
		return nil, err
	}

	wallet.Status = model.WalletStatusDepositDetected
	wallet.DetectedAmount = &amount
	wallet.DepositTxHash = &txHash
	return wallet, nil
}

// EncryptedKey worker 取钱包私钥密文以发起归集
// 只有检测到充值（或归集失败待人工处理）的钱包才允许取钥；
// 从 deposit_detected 取钥即视为归集已发起。
func (s *WalletService) EncryptedKey(ctx context.Context, walletID int64) (string, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return "", apperr.New(apperr.KindNotFound, "临时钱包不存在")
		}
		return "", err
	}

	switch wallet.Status {
	case model.WalletStatusDepositDetected:
		if err := s.walletRepo.UpdateFields(ctx, nil, wallet.ID, map[string]interface{}{
			"status": model.WalletStatusSweepInitiated,
		}); err != nil {
			return "", err
		}
		return wallet.EncryptedPrivateKey, nil
	case model.WalletStatusSweepFailed:
		// 归集失败后允许重取密钥做人工恢复，状态不变
		return wallet.EncryptedPrivateKey, nil
	default:
		return "", apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("钱包状态 %s 不允许获取私钥", wallet.Status))
	}
}

// NotifySweep worker 回调：归集结果
// 成功时把归集金额入账到 (用户, 钱包网络, 钱包策略) 账户，
// 钱包状态推进和余额入账在同一个事务里。
// sweptAmount 缺省回退到检测到的充值金额。
func (s *WalletService) NotifySweep(ctx context.Context, address string, success bool, sweepTxID, errorMessage string, sweptAmount *decimal.Decimal) (*model.TemporaryWallet, error) {
	wallet, err := s.walletRepo.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrWalletNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "临时钱包不存在")
		}
		return nil, err
	}

	// 重复回调：已到达对应终态
	if success && wallet.Status == model.WalletStatusSweepSuccess {
		return wallet, nil
	}
	if !success && wallet.Status == model.WalletStatusSweepFailed {
		return wallet, nil
	}

	target := model.WalletStatusSweepSuccess
	if !success {
		target = model.WalletStatusSweepFailed
	}
	if !model.CanWalletTransitionTo(wallet.Status, target) {
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("钱包状态 %s 不能迁移到 %s", wallet.Status, target))
	}

	if !success {
		fields := map[string]interface{}{"status": model.WalletStatusSweepFailed}
		if errorMessage != "" {
			fields["error_message"] = errorMessage
		}
		if err := s.walletRepo.UpdateFields(ctx, nil, wallet.ID, fields); err != nil {
			return nil, err
		}
		wallet.Status = model.WalletStatusSweepFailed
		return wallet, nil
	}

	creditAmount := wallet.DetectedAmount
	if sweptAmount != nil {
		creditAmount = sweptAmount
	}
	if creditAmount == nil || !creditAmount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "归集金额必须大于0")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetOrCreate(ctx, tx, wallet.UserID, wallet.Network, wallet.Strategy)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{"status": model.WalletStatusSweepSuccess}
		if sweepTxID != "" {
			fields["sweep_tx_id"] = sweepTxID
		}
		if err := s.walletRepo.UpdateFields(ctx, tx, wallet.ID, fields); err != nil {
			return err
		}

		return s.ledger.Credit(ctx, tx, account, *creditAmount,
			model.LedgerReasonSweepCredit, "temporary_wallet", strconv.FormatInt(wallet.ID, 10))
	})
	if err != nil {
		return nil, err
	}

	wallet.Status = model.WalletStatusSweepSuccess
	if sweepTxID != "" {
		wallet.SweepTxID = &sweepTxID
	}
	return wallet, nil
}

// PendingWallets 等待充值的钱包列表（worker 轮询监控用）
func (s *WalletService) PendingWallets(ctx context.Context, limit int) ([]*model.TemporaryWallet, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.walletRepo.ListPendingDeposit(ctx, limit)
}

// ListWallets 用户的临时钱包记录
func (s *WalletService) ListWallets(ctx context.Context, userID int64, strategy string, limit int) ([]*model.TemporaryWallet, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.walletRepo.ListByUser(ctx, userID, strategy, limit)
}

// ExpireWallets 批量过期超时未充值的钱包，由定时任务调用
func (s *WalletService) ExpireWallets(ctx context.Context) (int64, error) {
	return s.walletRepo.ExpirePending(ctx, time.Now())
}
