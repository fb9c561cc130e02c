package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/lock"
	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/repository"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WithdrawalService 提现协调服务
//
// 余额在创建请求时一次性扣减，与请求记录、结算指令同事务落库。
// 之后的所有状态回调只推进状态机，不再碰余额——
// 唯一的例外是 worker 报告执行失败时的原路返还。
type WithdrawalService struct {
	db             *gorm.DB
	redisClient    *redis.Client // 可为 nil：锁只降并发冲突概率，正确性在数据库约束上
	ledger         *LedgerService
	accountRepo    *repository.AccountRepository
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
	topicPrefix    string
}

func NewWithdrawalService(db *gorm.DB, redisClient *redis.Client, topicPrefix string) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		redisClient:    redisClient,
		ledger:         NewLedgerService(db),
		accountRepo:    repository.NewAccountRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		topicPrefix:    topicPrefix,
	}
}

// Request 发起提现
// 扣款、请求记录、结算指令三者同事务：要么都成立，要么都不存在。
// 余额不足或并发冲突时整体回滚，不会出现"扣了款没有请求"的状态。
func (s *WithdrawalService) Request(ctx context.Context, userID int64, network, strategy string, amount decimal.Decimal, targetWallet, targetNetwork string) (*model.WithdrawalRequest, error) {
	profile, ok := GetStrategyProfile(strategy)
	if !ok {
		return nil, apperr.New(apperr.KindValidation, "未知的投资策略: "+strategy)
	}
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "提现金额必须大于0")
	}

	account, err := s.accountRepo.Get(ctx, userID, network, strategy)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "投资账户不存在")
		}
		return nil, err
	}

	// 固定收益策略受激活/锁定期约束，活期策略随时可提
	if profile.RequireActivated && account.IsLocked(time.Now()) {
		if !account.Activated {
			return nil, apperr.New(apperr.KindStateConflict, "账户未激活，不能提现")
		}
		unlock := account.UnlockDate()
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("账户锁定期未满，解锁时间: %s", unlock.Format("2006-01-02")))
	}

	// 目标地址：请求参数优先，缺省回退账户配置的收款地址
	if targetWallet == "" {
		if !account.HasTarget() {
			return nil, apperr.New(apperr.KindValidation, "未指定提现地址，且账户未配置收款地址")
		}
		targetWallet = *account.TargetWallet
		targetNetwork = *account.TargetWalletNetwork
	}
	if targetNetwork == "" {
		targetNetwork = network
	}

	requestID := uuid.NewString()

	// 同账户提现串行化；redis 不可用时直接放行，唯一约束仍兜底
	if s.redisClient != nil {
		withdrawLock := lock.NewWithdrawLock(s.redisClient, account.ID, requestID)
		acquired, lockErr := withdrawLock.TryLock(ctx)
		if lockErr != nil {
			log.Printf("提现锁获取异常，降级放行: account_id=%d, err=%v", account.ID, lockErr)
		} else if !acquired {
			return nil, apperr.New(apperr.KindStateConflict, "该账户有提现请求正在处理，请稍后重试")
		} else {
			defer func() {
				if err := withdrawLock.Unlock(context.Background()); err != nil {
					log.Printf("提现锁释放失败: account_id=%d, err=%v", account.ID, err)
				}
			}()
		}
	}

	var request *model.WithdrawalRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.Debit(ctx, tx, account, amount,
			model.LedgerReasonWithdrawalDebit, "withdrawal_request", requestID); err != nil {
			return err
		}

		request = &model.WithdrawalRequest{
			ID:           requestID,
			AccountID:    account.ID,
			Strategy:     strategy,
			Amount:       amount,
			Network:      network,
			TargetWallet: targetWallet,
			Status:       model.WithdrawalStatusPending,
		}
		if err := s.withdrawalRepo.Create(ctx, tx, request); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]interface{}{
			"type":          "withdrawal_request",
			"payout_app":    strategy,
			"request_id":    requestID,
			"user_id":       account.UserID,
			"account_id":    account.ID,
			"target_wallet": targetWallet,
			"amount":        amount.StringFixed(profile.Precision),
			"token":         "USDT",
			"network":       targetNetwork,
		})
		if err != nil {
			return err
		}

		return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
			MessageKey: requestID,
			Topic:      s.topicPrefix + strategy,
			Payload:    string(payload),
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// UpdateStatus worker 回调：推进提现状态机
//
// 条件更新（status = 当前值）保证并发重复回调只有一次生效；
// 落空后重读，发现已在目标状态则按幂等成功返回。
// FAILED 回调在同一事务里把冻结金额原路返还。
func (s *WithdrawalService) UpdateStatus(ctx context.Context, id, newStatus string, txHash *string, errorMessage string) (*model.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "提现请求不存在")
		}
		return nil, err
	}

	// 重复投递：已在目标状态
	if request.Status == newStatus {
		return request, nil
	}

	if !model.CanWithdrawalTransitionTo(request.Status, newStatus) {
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("提现状态 %s 不能迁移到 %s", request.Status, newStatus))
	}

	fields := map[string]interface{}{"status": newStatus}
	if txHash != nil && *txHash != "" {
		fields["tx_hash"] = *txHash
	}
	if errorMessage != "" {
		fields["error_message"] = errorMessage
	}
	if model.IsTerminalWithdrawalStatus(newStatus) {
		now := time.Now()
		fields["processed_at"] = now
	}

	fromStatus := request.Status
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.withdrawalRepo.UpdateStatus(ctx, tx, id, fromStatus, fields)
		if err != nil {
			return err
		}
		if !updated {
			// 被并发回调抢先，重读判定
			current, err := s.withdrawalRepo.GetByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if current.Status == newStatus {
				request = current
				return nil
			}
			return apperr.New(apperr.KindStateConflict,
				fmt.Sprintf("提现状态已变更为 %s", current.Status))
		}

		// worker 报告执行失败：冻结金额原路返还
		if newStatus == model.WithdrawalStatusFailed {
			account, err := s.accountRepo.GetByID(ctx, tx, request.AccountID)
			if err != nil {
				return err
			}
			if err := s.ledger.Credit(ctx, tx, account, request.Amount,
				model.LedgerReasonWithdrawalRefund, "withdrawal_request", request.ID); err != nil {
				return err
			}
		}

		// 完成回调的余额自检：余额为负说明账务有bug，
		// 把请求改判为失败留给人工对账。资金已上链，不返还。
		if newStatus == model.WithdrawalStatusCompleted {
			account, err := s.accountRepo.GetByID(ctx, tx, request.AccountID)
			if err != nil {
				return err
			}
			if account.Balance.IsNegative() {
				msg := "完成时账户余额为负，判定账务异常，转人工对账"
				if err := tx.WithContext(ctx).
					Model(&model.WithdrawalRequest{}).
					Where("id = ?", id).
					Updates(map[string]interface{}{
						"status":        model.WithdrawalStatusFailed,
						"error_message": msg,
					}).Error; err != nil {
					return err
				}
				newStatus = model.WithdrawalStatusFailed
				errorMessage = msg
			}
		}

		request.Status = newStatus
		if txHash != nil && *txHash != "" {
			request.TxHash = txHash
		}
		if errorMessage != "" {
			request.ErrorMessage = &errorMessage
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Cancel 用户取消提现
// 只有还没开始处理（PENDING）的请求可以取消，取消即全额返还。
func (s *WithdrawalService) Cancel(ctx context.Context, userID int64, id string) (*model.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "提现请求不存在")
		}
		return nil, err
	}

	account, err := s.accountRepo.GetByID(ctx, nil, request.AccountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, apperr.New(apperr.KindNotFound, "提现请求不存在")
	}

	if request.Status != model.WithdrawalStatusPending {
		return nil, apperr.New(apperr.KindStateConflict,
			fmt.Sprintf("提现状态 %s 不允许取消", request.Status))
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updated, err := s.withdrawalRepo.UpdateStatus(ctx, tx, id, model.WithdrawalStatusPending,
			map[string]interface{}{
				"status":       model.WithdrawalStatusCancelled,
				"processed_at": now,
			})
		if err != nil {
			return err
		}
		if !updated {
			return apperr.New(apperr.KindStateConflict, "提现已开始处理，不能取消")
		}

		return s.ledger.Credit(ctx, tx, account, request.Amount,
			model.LedgerReasonWithdrawalRefund, "withdrawal_request", request.ID)
	})
	if err != nil {
		return nil, err
	}

	request.Status = model.WithdrawalStatusCancelled
	return request, nil
}

// Status worker 查询提现请求当前状态（处理前校验用）
func (s *WithdrawalService) Status(ctx context.Context, id string) (*model.WithdrawalRequest, error) {
	request, err := s.withdrawalRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "提现请求不存在")
		}
		return nil, err
	}
	return request, nil
}
