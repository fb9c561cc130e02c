package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/lock"
	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayoutService 收益发放服务
//
// 发放的幂等性只依赖 daily_payout 的 (account_id, period) 唯一键：
// 调度任务随便重跑，同一账户同一周期最多落一条记录。
// 固定收益策略发放记录 + 结算指令同事务落库，由结算 worker 执行转账；
// flexible 策略直接复投入余额，不产生结算指令。
type PayoutService struct {
	db          *gorm.DB
	redisClient *redis.Client // 可为 nil
	ledger      *LedgerService
	accountRepo *repository.AccountRepository
	payoutRepo  *repository.PayoutRepository
	configRepo  *repository.ConfigRepository
	outboxRepo  *repository.OutboxRepository
	topicPrefix string
	holder      string // 调度锁持有者标识（实例维度）
}

func NewPayoutService(db *gorm.DB, redisClient *redis.Client, topicPrefix, holder string) *PayoutService {
	if holder == "" {
		holder = "scheduler"
	}
	return &PayoutService{
		db:          db,
		redisClient: redisClient,
		ledger:      NewLedgerService(db),
		accountRepo: repository.NewAccountRepository(db),
		payoutRepo:  repository.NewPayoutRepository(db),
		configRepo:  repository.NewConfigRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
		topicPrefix: topicPrefix,
		holder:      holder,
	}
}

// GeneratePayouts 为一个策略跑一轮发放，返回本轮新建的发放记录数
//
// 配置缺失或停用时静默跳过（刻意的 no-op，不是错误）；
// 单个账户失败只记日志不中断，下一轮重跑会补上（唯一键保证不重复）。
func (s *PayoutService) GeneratePayouts(ctx context.Context, strategy string) (int, error) {
	profile, ok := GetStrategyProfile(strategy)
	if !ok {
		return 0, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}

	cfg, err := s.configRepo.GetActive(ctx, strategy)
	if err != nil {
		return 0, err
	}
	if cfg == nil {
		log.Printf("策略 %s 无启用配置，跳过本轮发放", strategy)
		return 0, nil
	}

	now := time.Now()
	period := profile.PeriodKey(now)

	// 多实例部署时同一周期只让一个实例跑批；redis 不可用时直接跑，
	// 重复跑批的写入会被唯一键拒绝。
	if s.redisClient != nil {
		schedulerLock := lock.NewSchedulerLock(s.redisClient, strategy, period, s.holder)
		acquired, lockErr := schedulerLock.TryLock(ctx)
		if lockErr != nil {
			log.Printf("调度锁获取异常，降级直接跑批: strategy=%s, err=%v", strategy, lockErr)
		} else if !acquired {
			return 0, nil
		} else {
			defer func() {
				if err := schedulerLock.Unlock(context.Background()); err != nil {
					log.Printf("调度锁释放失败: strategy=%s, err=%v", strategy, err)
				}
			}()
		}
	}

	var candidates []*model.InvestmentAccount
	if profile.RequireActivated {
		candidates, err = s.accountRepo.ListActivatedCandidates(ctx, strategy, period)
	} else {
		candidates, err = s.accountRepo.ListFundedCandidates(ctx, strategy, period)
	}
	if err != nil {
		return 0, err
	}

	rate := profile.IntervalRate(cfg.PayoutRate)
	created := 0

	for _, account := range candidates {
		if profile.RequireActivated && account.IsLocked(now) {
			continue
		}

		amount := account.Balance.Mul(rate).Round(profile.Precision)
		if !amount.IsPositive() {
			continue // 余额太小，四舍五入后为零，本周期跳过
		}

		if err := s.payoutOne(ctx, profile, account, period, amount); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue // 本周期已发放过，幂等跳过
			}
			log.Printf("账户发放失败: account_id=%d, strategy=%s, period=%s, err=%v",
				account.ID, strategy, period, err)
			continue
		}
		created++
	}

	if created > 0 {
		log.Printf("发放完成: strategy=%s, period=%s, created=%d", strategy, period, created)
	}
	return created, nil
}

// payoutOne 单个账户的一次发放（独立事务）
func (s *PayoutService) payoutOne(ctx context.Context, profile *StrategyProfile, account *model.InvestmentAccount, period string, amount decimal.Decimal) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		payout := &model.DailyPayout{
			AccountID: account.ID,
			Strategy:  profile.Key,
			Period:    period,
			Amount:    amount,
			// 复投策略不经过外部结算，创建即完成
			Success: profile.Compounding,
		}
		if err := s.payoutRepo.Create(ctx, tx, payout); err != nil {
			return err
		}

		if profile.Compounding {
			return s.ledger.Credit(ctx, tx, account, amount,
				model.LedgerReasonPayoutAccrual, "daily_payout", strconv.FormatInt(payout.ID, 10))
		}

		payload, err := json.Marshal(map[string]interface{}{
			"type":       "daily_payout",
			"payout_app": profile.Key,
			"payout_id":  payout.ID,
			"user_id":    account.UserID,
			"account_id": account.ID,
			"to_address": derefString(account.TargetWallet),
			"amount":     amount.StringFixed(profile.Precision),
			"token":      "USDT",
			"network":    derefString(account.TargetWalletNetwork),
		})
		if err != nil {
			return err
		}

		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: strconv.FormatInt(payout.ID, 10),
			Topic:      s.topicPrefix + profile.Key,
			Payload:    string(payload),
		})
	})
}

// UpdateResult worker 回调：写入发放的链上执行结果
func (s *PayoutService) UpdateResult(ctx context.Context, payoutID int64, success bool, txHash *string) (*model.DailyPayout, error) {
	if err := s.payoutRepo.UpdateResult(ctx, payoutID, success, txHash); err != nil {
		if errors.Is(err, repository.ErrPayoutNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "发放记录不存在")
		}
		return nil, err
	}
	return s.payoutRepo.GetByID(ctx, payoutID)
}

// Status worker 查询发放记录当前状态
func (s *PayoutService) Status(ctx context.Context, payoutID int64) (*model.DailyPayout, error) {
	payout, err := s.payoutRepo.GetByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "发放记录不存在")
		}
		return nil, err
	}
	return payout, nil
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
