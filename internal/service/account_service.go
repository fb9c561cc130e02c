package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountService 账户操作：查询、激活、手动入金、历史记录
type AccountService struct {
	db             *gorm.DB
	ledger         *LedgerService
	accountRepo    *repository.AccountRepository
	depositRepo    *repository.DepositRepository
	payoutRepo     *repository.PayoutRepository
	withdrawalRepo *repository.WithdrawalRepository
	configRepo     *repository.ConfigRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:             db,
		ledger:         NewLedgerService(db),
		accountRepo:    repository.NewAccountRepository(db),
		depositRepo:    repository.NewDepositRepository(db),
		payoutRepo:     repository.NewPayoutRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		configRepo:     repository.NewConfigRepository(db),
	}
}

// ListAccounts 用户在某个策略下的全部账户
func (s *AccountService) ListAccounts(ctx context.Context, userID int64, strategy string) ([]*model.InvestmentAccount, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	return s.accountRepo.ListByUser(ctx, userID, strategy)
}

// Activate 激活账户
// 只有余额达到策略最小入金才能激活；重复激活是状态冲突。
// 锁定天数在激活时从当前配置快照，后续改配置不影响已激活账户。
func (s *AccountService) Activate(ctx context.Context, userID int64, network, strategy string) (*model.InvestmentAccount, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}

	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "该网络下的投资账户不存在")
		}
		return nil, err
	}

	if account.Activated {
		return nil, apperr.New(apperr.KindStateConflict, "账户已激活")
	}

	cfg, err := s.configRepo.GetActive(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apperr.New(apperr.KindConfigurationMissing, "投资策略当前不可用")
	}

	if account.Balance.LessThan(cfg.MinDeposit) {
		return nil, apperr.New(apperr.KindValidation,
			fmt.Sprintf("激活需要最小入金 %s USDT", cfg.MinDeposit.String()))
	}

	now := time.Now()
	account.Activated = true
	account.ActivationDate = &now
	account.LockDays = cfg.LockDays
	if err := s.accountRepo.Activate(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ManualDeposit 手动入金（测试/人工补账通道）
// 入金记录和余额入账同事务；tx_hash 重复直接拒绝。
func (s *AccountService) ManualDeposit(ctx context.Context, userID int64, network, strategy string, amount decimal.Decimal, txHash *string) (*model.Deposit, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "入金金额必须大于0")
	}

	if txHash != nil && *txHash != "" {
		existing, err := s.depositRepo.GetByTxHash(ctx, *txHash)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, apperr.New(apperr.KindDuplicateIdentity, "该交易哈希已注册")
		}
	}

	var deposit *model.Deposit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := s.accountRepo.GetOrCreate(ctx, tx, userID, network, strategy)
		if err != nil {
			return err
		}

		deposit = &model.Deposit{
			AccountID: account.ID,
			Strategy:  strategy,
			Amount:    amount,
			TxHash:    txHash,
		}
		if err := s.depositRepo.Create(ctx, tx, deposit); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.KindDuplicateIdentity, "该交易哈希已注册")
			}
			return err
		}

		return s.ledger.Credit(ctx, tx, account, amount,
			model.LedgerReasonDeposit, "deposit", strconv.FormatInt(deposit.ID, 10))
	})
	if err != nil {
		return nil, err
	}
	return deposit, nil
}

// SetTarget 配置收款地址（每日收益/提现的目标钱包）
func (s *AccountService) SetTarget(ctx context.Context, userID int64, network, strategy, targetWallet, targetNetwork string) error {
	if targetWallet == "" || targetNetwork == "" {
		return apperr.New(apperr.KindValidation, "收款地址和网络不能为空")
	}
	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return apperr.New(apperr.KindNotFound, "该网络下的投资账户不存在")
		}
		return err
	}
	return s.db.WithContext(ctx).
		Model(account).
		Updates(map[string]interface{}{
			"target_wallet":         targetWallet,
			"target_wallet_network": targetNetwork,
		}).Error
}

// PayoutHistory 收益发放历史
func (s *AccountService) PayoutHistory(ctx context.Context, userID int64, network, strategy string, limit int) ([]*model.DailyPayout, error) {
	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "投资账户不存在")
		}
		return nil, err
	}
	return s.payoutRepo.ListByAccountID(ctx, account.ID, limit)
}

// DepositHistory 入金历史
func (s *AccountService) DepositHistory(ctx context.Context, userID int64, network, strategy string, limit int) ([]*model.Deposit, error) {
	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "投资账户不存在")
		}
		return nil, err
	}
	return s.depositRepo.ListByAccountID(ctx, account.ID, limit)
}

// WithdrawalHistory 提现历史
func (s *AccountService) WithdrawalHistory(ctx context.Context, userID int64, network, strategy string, limit int) ([]*model.WithdrawalRequest, error) {
	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "投资账户不存在")
		}
		return nil, err
	}
	return s.withdrawalRepo.ListByAccountID(ctx, account.ID, limit)
}

// LedgerHistory 账变流水
func (s *AccountService) LedgerHistory(ctx context.Context, userID int64, network, strategy string, limit int) ([]*model.LedgerEntry, error) {
	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "投资账户不存在")
		}
		return nil, err
	}
	return s.ledger.Entries(ctx, account.ID, limit)
}

// PublicConfig 策略公开配置（利率、锁定期、最小入金）
func (s *AccountService) PublicConfig(ctx context.Context, strategy string) (*model.InvestmentConfig, error) {
	if _, ok := GetStrategyProfile(strategy); !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	cfg, err := s.configRepo.GetActive(ctx, strategy)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, apperr.New(apperr.KindConfigurationMissing, "策略配置不可用")
	}
	return cfg, nil
}
