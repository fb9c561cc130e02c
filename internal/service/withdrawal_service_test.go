package service

import (
	"context"
	"testing"

	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/testutil"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawalDebitsAtRequest(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "alice", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("40"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, request.Status)
	assert.Equal(t, "TDestAddr", request.TargetWallet)

	// 余额在请求时一次性扣减
	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("60")))

	var entry model.LedgerEntry
	require.NoError(t, db.Where("reason = ?", model.LedgerReasonWithdrawalDebit).First(&entry).Error)
	assert.Equal(t, request.ID, entry.ReferenceID)

	// 结算指令同事务进发件箱
	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "payouts_"+StrategyFlexible, msg.Topic)
	assert.Equal(t, request.ID, msg.MessageKey)
	assert.Contains(t, msg.Payload, `"type":"withdrawal_request"`)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "bob", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	_, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("50"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)
	_, err = svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("50"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)

	// 余额已提空，哪怕1都不够
	_, err = svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("1"), "TDestAddr", model.NetworkTRC20)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInsufficientFunds))

	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.IsZero())

	// 失败的请求不留任何记录
	var count int64
	require.NoError(t, db.Model(&model.WithdrawalRequest{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestWithdrawalCompletionDoesNotDoubleDebit(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "carol", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("30"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusProcessing, nil, "")
	require.NoError(t, err)

	txHash := "0xdeadbeef"
	completed, err := svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusCompleted, &txHash, "")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCompleted, completed.Status)

	// 回调只推进状态：余额仍是请求时扣减后的值
	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("70")))

	// 重复投递同一终态回调：幂等成功
	again, err := svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusCompleted, &txHash, "")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCompleted, again.Status)
}

func TestWithdrawalFailureRefunds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "dave", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("30"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusProcessing, nil, "")
	require.NoError(t, err)

	failed, err := svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusFailed, nil, "链上广播失败")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusFailed, failed.Status)

	// 失败原路返还
	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("100")))

	var refund model.LedgerEntry
	require.NoError(t, db.Where("reason = ?", model.LedgerReasonWithdrawalRefund).First(&refund).Error)
	assert.Equal(t, request.ID, refund.ReferenceID)
	// 返还流水的余额快照接在扣款之后，和入账后的余额衔接
	assert.True(t, refund.BalanceBefore.Equal(decimal.RequireFromString("70")),
		"balance_before = %s", refund.BalanceBefore)
	assert.True(t, refund.BalanceAfter.Equal(decimal.RequireFromString("100")),
		"balance_after = %s", refund.BalanceAfter)

	// 重复的失败回调不会二次返还
	_, err = svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusFailed, nil, "链上广播失败")
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("100")))
}

func TestWithdrawalIllegalTransition(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "erin", nil)
	testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("30"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusCompleted, nil, "")
	require.NoError(t, err)

	// 终态不再迁出
	_, err = svc.UpdateStatus(ctx, request.ID, model.WithdrawalStatusProcessing, nil, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestWithdrawalCancelRefunds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "frank", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("25"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, user.ID, request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCancelled, cancelled.Status)

	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("100")))

	// 已开始处理后不能取消
	request2, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("25"), "TDestAddr", model.NetworkTRC20)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, request2.ID, model.WithdrawalStatusProcessing, nil, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, user.ID, request2.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestWithdrawalFallsBackToAccountTarget(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWithdrawalService(db, nil, "payouts_")

	user := testutil.CreateUser(t, db, "grace", nil)
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))
	target := "TAccountTarget"
	targetNetwork := model.NetworkTRC20
	require.NoError(t, db.Model(account).Updates(map[string]interface{}{
		"target_wallet":         target,
		"target_wallet_network": targetNetwork,
	}).Error)

	request, err := svc.Request(ctx, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("10"), "", "")
	require.NoError(t, err)
	assert.Equal(t, target, request.TargetWallet)

	// 既没传地址、账户也没配置时拒绝
	user2 := testutil.CreateUser(t, db, "heidi", nil)
	testutil.CreateAccount(t, db, user2.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("100"))
	_, err = svc.Request(ctx, user2.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("10"), "", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
