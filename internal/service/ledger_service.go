package service

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"
	"github.com/Venterweb3-wq/zodiak/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService 账本服务
//
// Credit / Debit 是余额唯一合法的修改入口，每次账变都和一条
// LedgerEntry 流水同事务写入：进程在余额更新和流水落库之间崩溃时，
// 事务整体回滚，不会留下无法解释的余额变化。
// 产生账变的业务记录（入金、发放、提现……）由调用方在同一个事务里创建。
type LedgerService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	ledgerRepo  *repository.LedgerRepository
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		ledgerRepo:  repository.NewLedgerRepository(db),
	}
}

// Credit 入账
// 调用后 account 的内存余额同步推进，便于同事务内继续使用。
func (s *LedgerService) Credit(ctx context.Context, tx *gorm.DB, account *model.InvestmentAccount, amount decimal.Decimal, reason, refType, refID string) error {
	if !amount.IsPositive() {
		return apperr.New(apperr.KindValidation, "入账金额必须大于0")
	}
	if tx == nil {
		tx = s.db
	}

	if err := s.accountRepo.Increase(ctx, tx, account.ID, amount); err != nil {
		return err
	}

	entry := &model.LedgerEntry{
		EntryNo:       idgen.GenerateEntryNo(),
		AccountID:     account.ID,
		Amount:        amount,
		Reason:        reason,
		ReferenceType: refType,
		ReferenceID:   refID,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance.Add(amount),
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return err
	}

	account.Balance = entry.BalanceAfter
	account.Version++
	return nil
}

// Debit 出账
// 条件更新保证余额不会被扣成负数；不足时拒绝且不产生任何变更。
func (s *LedgerService) Debit(ctx context.Context, tx *gorm.DB, account *model.InvestmentAccount, amount decimal.Decimal, reason, refType, refID string) error {
	if !amount.IsPositive() {
		return apperr.New(apperr.KindValidation, "出账金额必须大于0")
	}
	if tx == nil {
		tx = s.db
	}

	if err := s.accountRepo.Deduct(ctx, tx, account.ID, amount, account.Version); err != nil {
		if errors.Is(err, repository.ErrBalanceNotEnough) {
			return apperr.New(apperr.KindInsufficientFunds, "余额不足")
		}
		if errors.Is(err, repository.ErrOptimisticLock) {
			return apperr.Wrap(apperr.KindStateConflict, "账户并发冲突，请重试", err)
		}
		return err
	}

	entry := &model.LedgerEntry{
		EntryNo:       idgen.GenerateEntryNo(),
		AccountID:     account.ID,
		Amount:        amount.Neg(),
		Reason:        reason,
		ReferenceType: refType,
		ReferenceID:   refID,
		BalanceBefore: account.Balance,
		BalanceAfter:  account.Balance.Sub(amount),
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		return err
	}

	account.Balance = entry.BalanceAfter
	account.Version++
	return nil
}

// Entries 账变历史
func (s *LedgerService) Entries(ctx context.Context, accountID int64, limit int) ([]*model.LedgerEntry, error) {
	return s.ledgerRepo.ListByAccountID(ctx, accountID, limit)
}
