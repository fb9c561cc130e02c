package repository

import (
	"context"
	"errors"

	"github.com/Venterweb3-wq/zodiak/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("投资账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.InvestmentAccount, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.InvestmentAccount
	err := tx.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) Get(ctx context.Context, userID int64, network, strategy string) (*model.InvestmentAccount, error) {
	var account model.InvestmentAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND network = ? AND strategy = ?", userID, network, strategy).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID int64, strategy string) ([]*model.InvestmentAccount, error) {
	var accounts []*model.InvestmentAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND strategy = ?", userID, strategy).
		Order("network ASC").
		Find(&accounts).Error
	return accounts, err
}

// GetOrCreate 获取或创建账户（并发安全，冲突时读回已有记录）
func (r *AccountRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID int64, network, strategy string) (*model.InvestmentAccount, error) {
	if tx == nil {
		tx = r.db
	}

	newAccount := &model.InvestmentAccount{
		UserID:   userID,
		Network:  network,
		Strategy: strategy,
		Balance:  decimal.Zero,
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "network"}, {Name: "strategy"},
			},
			DoNothing: true,
		}).
		Create(newAccount).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	var account model.InvestmentAccount
	err = tx.WithContext(ctx).
		Where("user_id = ? AND network = ? AND strategy = ?", userID, network, strategy).
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Deduct 条件扣款：余额充足且版本匹配才生效
// RowsAffected==0 时回查区分"余额不足"和"并发冲突"。
func (r *AccountRepository) Deduct(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.InvestmentAccount{}).
		Where("id = ? AND balance >= ? AND version = ?", accountID, amount, version).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 回查必须走同一个事务连接，否则看到的是事务外的旧状态
		account, err := r.GetByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if account.Balance.LessThan(amount) {
			return ErrBalanceNotEnough
		}
		return ErrOptimisticLock
	}

	return nil
}

// Increase 入账
func (r *AccountRepository) Increase(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.InvestmentAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// Activate 激活账户，快照配置的锁定天数
func (r *AccountRepository) Activate(ctx context.Context, account *model.InvestmentAccount) error {
	return r.db.WithContext(ctx).
		Model(account).
		Updates(map[string]interface{}{
			"activated":       true,
			"activation_date": account.ActivationDate,
			"lock_days":       account.LockDays,
		}).Error
}

// ListActivatedCandidates 固定收益策略的发放候选账户：
// 已激活、配置了收款地址、本周期还没有发放记录。
// 解锁日期的过滤在服务层做（跨 MySQL/SQLite 的日期运算不可移植）。
func (r *AccountRepository) ListActivatedCandidates(ctx context.Context, strategy, period string) ([]*model.InvestmentAccount, error) {
	var accounts []*model.InvestmentAccount
	err := r.db.WithContext(ctx).
		Where("strategy = ? AND activated = ?", strategy, true).
		Where("target_wallet IS NOT NULL AND target_wallet <> ''").
		Where("NOT EXISTS (SELECT 1 FROM daily_payout dp WHERE dp.account_id = investment_account.id AND dp.period = ?)", period).
		Find(&accounts).Error
	return accounts, err
}

// ListFundedCandidates 活期策略的发放候选账户：余额大于零、本周期未发放
func (r *AccountRepository) ListFundedCandidates(ctx context.Context, strategy, period string) ([]*model.InvestmentAccount, error) {
	var accounts []*model.InvestmentAccount
	err := r.db.WithContext(ctx).
		Where("strategy = ? AND balance > 0", strategy).
		Where("NOT EXISTS (SELECT 1 FROM daily_payout dp WHERE dp.account_id = investment_account.id AND dp.period = ?)", period).
		Find(&accounts).Error
	return accounts, err
}
