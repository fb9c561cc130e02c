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

func TestManualDepositCreatesAccountAndCredits(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	user := testutil.CreateUser(t, db, "alice", nil)

	txHash := "0xmanual1"
	deposit, err := svc.ManualDeposit(ctx, user.ID, model.NetworkTRC20, StrategyCrossArbitrage,
		decimal.RequireFromString("150"), &txHash)
	require.NoError(t, err)
	assert.True(t, deposit.Amount.Equal(decimal.RequireFromString("150")))

	// 账户按 (用户, 网络, 策略) 自动创建并入账
	var account model.InvestmentAccount
	require.NoError(t, db.Where("user_id = ? AND network = ? AND strategy = ?",
		user.ID, model.NetworkTRC20, StrategyCrossArbitrage).First(&account).Error)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("150")))

	var entry model.LedgerEntry
	require.NoError(t, db.Where("reason = ?", model.LedgerReasonDeposit).First(&entry).Error)
	assert.Equal(t, account.ID, entry.AccountID)

	// 同一 tx_hash 二次提交被拒绝
	_, err = svc.ManualDeposit(ctx, user.ID, model.NetworkTRC20, StrategyCrossArbitrage,
		decimal.RequireFromString("150"), &txHash)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDuplicateIdentity))
}

func TestActivateRequiresMinDeposit(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	user := testutil.CreateUser(t, db, "bob", nil)
	testutil.CreateConfig(t, db, StrategyDefiBot,
		decimal.RequireFromString("0.002"), decimal.RequireFromString("100"), 45)
	testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategyDefiBot,
		decimal.RequireFromString("40"))

	_, err := svc.Activate(ctx, user.ID, model.NetworkTRC20, StrategyDefiBot)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// 补足后激活成功，锁定天数从配置快照
	_, err = svc.ManualDeposit(ctx, user.ID, model.NetworkTRC20, StrategyDefiBot,
		decimal.RequireFromString("60"), nil)
	require.NoError(t, err)

	account, err := svc.Activate(ctx, user.ID, model.NetworkTRC20, StrategyDefiBot)
	require.NoError(t, err)
	assert.True(t, account.Activated)
	assert.Equal(t, 45, account.LockDays)
	require.NotNil(t, account.ActivationDate)

	// 重复激活是状态冲突
	_, err = svc.Activate(ctx, user.ID, model.NetworkTRC20, StrategyDefiBot)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestActivateWithoutConfigUnavailable(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	user := testutil.CreateUser(t, db, "carol", nil)
	testutil.CreateAccount(t, db, user.ID, model.NetworkTRC20, StrategySpotScalping,
		decimal.RequireFromString("1000"))

	_, err := svc.Activate(ctx, user.ID, model.NetworkTRC20, StrategySpotScalping)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindConfigurationMissing))
}

func TestUnknownStrategyRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewAccountService(db)

	user := testutil.CreateUser(t, db, "dave", nil)

	_, err := svc.ManualDeposit(ctx, user.ID, model.NetworkTRC20, "margin_trading",
		decimal.RequireFromString("100"), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.ListAccounts(ctx, user.ID, "margin_trading")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
