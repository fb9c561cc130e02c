package service

import (
	"context"
	"testing"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newActivatedAccount(t *testing.T, db *gorm.DB, userID int64, strategy string, balance string) *model.InvestmentAccount {
	t.Helper()
	activated := time.Now().Add(-31 * 24 * time.Hour)
	target := "TTargetAddress111"
	targetNetwork := model.NetworkTRC20
	account := &model.InvestmentAccount{
		UserID:              userID,
		Network:             model.NetworkTRC20,
		Strategy:            strategy,
		Balance:             decimal.RequireFromString(balance),
		Activated:           true,
		ActivationDate:      &activated,
		LockDays:            30,
		TargetWallet:        &target,
		TargetWalletNetwork: &targetNetwork,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func TestGeneratePayoutsFixedStrategy(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "alice", nil)
	account := newActivatedAccount(t, db, user.ID, StrategyCrossArbitrage, "1000")
	testutil.CreateConfig(t, db, StrategyCrossArbitrage,
		decimal.RequireFromString("0.0015"), decimal.RequireFromString("100"), 30)

	created, err := svc.GeneratePayouts(ctx, StrategyCrossArbitrage)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	var payout model.DailyPayout
	require.NoError(t, db.Where("account_id = ?", account.ID).First(&payout).Error)
	assert.Equal(t, "1.500000", payout.Amount.StringFixed(6))
	assert.Equal(t, StrategyCrossArbitrage, payout.Strategy)
	assert.False(t, payout.Success, "链上执行结果只能由回调写入")

	// 固定收益不复投：余额不变，结算指令进发件箱
	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("1000")))

	var msg model.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, "payouts_"+StrategyCrossArbitrage, msg.Topic)
	assert.Contains(t, msg.Payload, `"type":"daily_payout"`)
	assert.Contains(t, msg.Payload, `"to_address":"TTargetAddress111"`)
}

func TestGeneratePayoutsIdempotentPerPeriod(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "bob", nil)
	account := newActivatedAccount(t, db, user.ID, StrategyDefiBot, "500")
	testutil.CreateConfig(t, db, StrategyDefiBot,
		decimal.RequireFromString("0.002"), decimal.RequireFromString("100"), 30)

	created, err := svc.GeneratePayouts(ctx, StrategyDefiBot)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// 同一周期重跑：不新建记录
	created, err = svc.GeneratePayouts(ctx, StrategyDefiBot)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, db.Model(&model.DailyPayout{}).Where("account_id = ?", account.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGeneratePayoutsInactiveConfigIsNoop(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "carol", nil)
	newActivatedAccount(t, db, user.ID, StrategySpotScalping, "1000")
	cfg := testutil.CreateConfig(t, db, StrategySpotScalping,
		decimal.RequireFromString("0.001"), decimal.RequireFromString("100"), 30)
	require.NoError(t, db.Model(cfg).Update("is_active", false).Error)

	created, err := svc.GeneratePayouts(ctx, StrategySpotScalping)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, db.Model(&model.DailyPayout{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestGeneratePayoutsSkipsLockedAndUnactivated(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "dave", nil)
	testutil.CreateConfig(t, db, StrategyCrossArbitrage,
		decimal.RequireFromString("0.0015"), decimal.RequireFromString("100"), 30)

	// 激活但锁定期未满
	activated := time.Now().Add(-24 * time.Hour)
	target := "TLockedAddr"
	targetNetwork := model.NetworkTRC20
	locked := &model.InvestmentAccount{
		UserID:              user.ID,
		Network:             model.NetworkTRC20,
		Strategy:            StrategyCrossArbitrage,
		Balance:             decimal.RequireFromString("1000"),
		Activated:           true,
		ActivationDate:      &activated,
		LockDays:            30,
		TargetWallet:        &target,
		TargetWalletNetwork: &targetNetwork,
	}
	require.NoError(t, db.Create(locked).Error)

	// 未激活
	testutil.CreateAccount(t, db, user.ID, model.NetworkBEP20, StrategyCrossArbitrage,
		decimal.RequireFromString("1000"))

	created, err := svc.GeneratePayouts(ctx, StrategyCrossArbitrage)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestGeneratePayoutsFlexibleCompounds(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "erin", nil)
	// flexible 不要求激活，余额大于零即参与
	account := testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("1440"))
	testutil.CreateConfig(t, db, StrategyFlexible,
		decimal.RequireFromString("0.00144"), decimal.RequireFromString("0"), 0)

	created, err := svc.GeneratePayouts(ctx, StrategyFlexible)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	// 日利率 0.00144 / 144 区间 = 0.00001/区间，1440 * 0.00001 = 0.0144
	var payout model.DailyPayout
	require.NoError(t, db.Where("account_id = ?", account.ID).First(&payout).Error)
	assert.Equal(t, "0.01440000", payout.Amount.StringFixed(8))
	assert.True(t, payout.Success, "复投发放创建即完成")

	// 复投：余额同事务入账，且有对应流水
	var stored model.InvestmentAccount
	require.NoError(t, db.First(&stored, account.ID).Error)
	assert.True(t, stored.Balance.Equal(decimal.RequireFromString("1440.0144")),
		"balance = %s", stored.Balance)

	var entry model.LedgerEntry
	require.NoError(t, db.Where("account_id = ?", account.ID).First(&entry).Error)
	assert.Equal(t, model.LedgerReasonPayoutAccrual, entry.Reason)

	// 不产生结算指令
	var msgCount int64
	require.NoError(t, db.Model(&model.OutboxMessage{}).Count(&msgCount).Error)
	assert.EqualValues(t, 0, msgCount)
}

func TestGeneratePayoutsSkipsZeroAmount(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "frank", nil)
	// 余额太小，单区间收益四舍五入后为零
	testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyFlexible,
		decimal.RequireFromString("0.0001"))
	testutil.CreateConfig(t, db, StrategyFlexible,
		decimal.RequireFromString("0.00144"), decimal.RequireFromString("0"), 0)

	created, err := svc.GeneratePayouts(ctx, StrategyFlexible)
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	var count int64
	require.NoError(t, db.Model(&model.DailyPayout{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestUpdatePayoutResult(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewPayoutService(db, nil, "payouts_", "test")

	user := testutil.CreateUser(t, db, "grace", nil)
	account := newActivatedAccount(t, db, user.ID, StrategyCrossArbitrage, "1000")
	testutil.CreateConfig(t, db, StrategyCrossArbitrage,
		decimal.RequireFromString("0.0015"), decimal.RequireFromString("100"), 30)

	_, err := svc.GeneratePayouts(ctx, StrategyCrossArbitrage)
	require.NoError(t, err)

	var payout model.DailyPayout
	require.NoError(t, db.Where("account_id = ?", account.ID).First(&payout).Error)

	txHash := "0xabc123"
	updated, err := svc.UpdateResult(ctx, payout.ID, true, &txHash)
	require.NoError(t, err)
	assert.True(t, updated.Success)
	require.NotNil(t, updated.TxHash)
	assert.Equal(t, txHash, *updated.TxHash)

	// 成功是终态：迟到的失败回调不能改回去，也不能覆盖 tx_hash
	staleHash := "0xstale"
	updated, err = svc.UpdateResult(ctx, payout.ID, false, &staleHash)
	require.NoError(t, err)
	assert.True(t, updated.Success)
	require.NotNil(t, updated.TxHash)
	assert.Equal(t, txHash, *updated.TxHash)
}
