package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 返佣金额精度（入账到 flexible 账户，用它的8位精度）
const referralPrecision = 8

// ReferralService 两级推荐返佣引擎
//
// 定时扫描最近一个结算窗口内的收益记录，沿推荐链向上走两级计提。
// 幂等键是 (接收人, 级别, 策略, 来源模型, 来源记录ID) 五元组唯一约束：
// 扫描窗口刻意和上一轮重叠也没关系，重复计提会被唯一键拒绝并按已完成跳过。
// 返佣统一入账到接收人的 flexible/TRC20 账户，与收益来源策略无关。
type ReferralService struct {
	db           *gorm.DB
	ledger       *LedgerService
	accountRepo  *repository.AccountRepository
	payoutRepo   *repository.PayoutRepository
	userRepo     *repository.UserRepository
	referralRepo *repository.ReferralRepository
	configRepo   *repository.ConfigRepository
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{
		db:           db,
		ledger:       NewLedgerService(db),
		accountRepo:  repository.NewAccountRepository(db),
		payoutRepo:   repository.NewPayoutRepository(db),
		userRepo:     repository.NewUserRepository(db),
		referralRepo: repository.NewReferralRepository(db),
		configRepo:   repository.NewConfigRepository(db),
	}
}

// ProcessAccruals 跑一轮返佣计提，返回本轮新建的返佣记录数
// 窗口取 [now-间隔-1小时, now)：和上一轮重叠一小时，
// 宁可重扫（被五元组挡掉）也不漏掉窗口边界上的收益。
func (s *ReferralService) ProcessAccruals(ctx context.Context) (int, error) {
	settings, err := s.referralRepo.GetActiveSettings(ctx)
	if err != nil {
		return 0, err
	}

	end := time.Now()
	start := end.Add(-time.Duration(settings.AccrualIntervalHours)*time.Hour - time.Hour)

	created := 0
	for strategy, profile := range StrategyRegistry {
		// 停用的策略不计提返佣，和收益发放用同一个开关
		cfg, err := s.configRepo.GetActive(ctx, strategy)
		if err != nil {
			log.Printf("返佣读取策略配置失败: strategy=%s, err=%v", strategy, err)
			continue
		}
		if cfg == nil {
			continue
		}

		payouts, err := s.payoutRepo.ListByStrategyWindow(ctx, strategy, start, end)
		if err != nil {
			log.Printf("返佣扫描失败: strategy=%s, err=%v", strategy, err)
			continue
		}

		for _, payout := range payouts {
			n, err := s.accrueForPayout(ctx, profile, settings, payout)
			if err != nil {
				log.Printf("返佣计提失败: payout_id=%d, err=%v", payout.ID, err)
				continue
			}
			created += n
		}
	}

	if created > 0 {
		log.Printf("返佣计提完成: created=%d", created)
	}
	return created, nil
}

// accrueForPayout 对一笔收益沿推荐链向上计提两级
func (s *ReferralService) accrueForPayout(ctx context.Context, profile *StrategyProfile, settings *model.ReferralSettings, payout *model.DailyPayout) (int, error) {
	account, err := s.accountRepo.GetByID(ctx, nil, payout.AccountID)
	if err != nil {
		return 0, err
	}

	sourceUser, err := s.userRepo.GetByID(ctx, account.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if sourceUser.ReferredByID == nil {
		return 0, nil
	}

	created := 0

	// 一级：直接推荐人
	level1ID := *sourceUser.ReferredByID
	ok, err := s.accrueOne(ctx, profile, payout, account.UserID, level1ID,
		model.ReferralLevel1, settings.Level1Percent)
	if err != nil {
		return created, err
	}
	if ok {
		created++
	}

	// 二级：推荐人的推荐人
	level1User, err := s.userRepo.GetByID(ctx, level1ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return created, nil
		}
		return created, err
	}
	if level1User.ReferredByID == nil {
		return created, nil
	}

	ok, err = s.accrueOne(ctx, profile, payout, account.UserID, *level1User.ReferredByID,
		model.ReferralLevel2, settings.Level2Percent)
	if err != nil {
		return created, err
	}
	if ok {
		created++
	}
	return created, nil
}

// accrueOne 给单个接收人计提一笔返佣（独立事务）
// 返佣记录和余额入账同事务；五元组冲突按幂等成功处理，返回 false 表示本笔已计提过。
func (s *ReferralService) accrueOne(ctx context.Context, profile *StrategyProfile, payout *model.DailyPayout, sourceUserID, recipientID int64, level int, percent decimal.Decimal) (bool, error) {
	amount := payout.Amount.Mul(percent).Round(referralPrecision)
	if !amount.IsPositive() {
		return false, nil
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		accrual := &model.ReferralAccrual{
			RecipientID:        recipientID,
			SourceUserID:       sourceUserID,
			Level:              level,
			Strategy:           payout.Strategy,
			Amount:             amount,
			SourceProfitAmount: payout.Amount,
			Percentage:         percent,
			SourceModel:        profile.SourceModel,
			SourceObjectID:     strconv.FormatInt(payout.ID, 10),
		}
		if err := s.referralRepo.CreateAccrual(ctx, tx, accrual); err != nil {
			return err
		}

		recipientAccount, err := s.accountRepo.GetOrCreate(ctx, tx,
			recipientID, ReferralCreditNetwork, ReferralCreditStrategy)
		if err != nil {
			return err
		}

		return s.ledger.Credit(ctx, tx, recipientAccount, amount,
			model.LedgerReasonReferralBonus, "referral_accrual", strconv.FormatInt(accrual.ID, 10))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil // 已对这笔收益计提过，幂等跳过
		}
		return false, err
	}
	return true, nil
}

// ListAccruals 用户收到的返佣记录
func (s *ReferralService) ListAccruals(ctx context.Context, recipientID int64, limit int) ([]*model.ReferralAccrual, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.referralRepo.ListByRecipient(ctx, recipientID, limit)
}
