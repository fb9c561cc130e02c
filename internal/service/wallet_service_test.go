package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/gateway"
	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/testutil"
	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator 替代外部结算服务的地址生成
type fakeGenerator struct {
	calls int
	err   error
}

func (f *fakeGenerator) GenerateAddress(ctx context.Context, network string) (*gateway.GeneratedWallet, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.GeneratedWallet{
		Address:             fmt.Sprintf("TGenerated%d", f.calls),
		EncryptedPrivateKey: "encrypted-blob",
		Network:             network,
	}, nil
}

func TestRequestWallet(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	gen := &fakeGenerator{}
	svc := NewWalletService(db, gen, 24)

	user := testutil.CreateUser(t, db, "alice", nil)

	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyCrossArbitrage, model.NetworkTRC20)
	require.NoError(t, err)
	assert.Equal(t, model.WalletStatusPendingDeposit, wallet.Status)
	require.NotNil(t, wallet.Address)
	assert.Equal(t, "TGenerated1", *wallet.Address)
	require.NotNil(t, wallet.ExpiresAt)
	assert.Equal(t, 1, gen.calls)
}

func TestRequestWalletGatewayFailure(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	gen := &fakeGenerator{err: apperr.New(apperr.KindGatewayUnavailable, "结算服务不可用")}
	svc := NewWalletService(db, gen, 24)

	user := testutil.CreateUser(t, db, "bob", nil)

	_, err := svc.RequestWallet(ctx, user.ID, StrategyCrossArbitrage, model.NetworkTRC20)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))

	// 失败留痕：error 状态的记录可查
	var wallet model.TemporaryWallet
	require.NoError(t, db.First(&wallet).Error)
	assert.Equal(t, model.WalletStatusError, wallet.Status)
	require.NotNil(t, wallet.ErrorMessage)
}

func TestNotifyDepositRecordsWithoutCredit(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "carol", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyDefiBot, model.NetworkTRC20)
	require.NoError(t, err)

	amount := decimal.RequireFromString("250")
	updated, err := svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkTRC20, amount, "0xhash1")
	require.NoError(t, err)
	assert.Equal(t, model.WalletStatusDepositDetected, updated.Status)
	require.NotNil(t, updated.DetectedAmount)
	assert.True(t, updated.DetectedAmount.Equal(amount))

	// 入金已登记
	var deposit model.Deposit
	require.NoError(t, db.First(&deposit).Error)
	assert.True(t, deposit.Amount.Equal(amount))

	// 但资金未归集，余额不入账
	var account model.InvestmentAccount
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&account).Error)
	assert.True(t, account.Balance.IsZero())

	// 同一交易的重复回调：幂等成功，不产生第二条入金记录
	_, err = svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkTRC20, amount, "0xhash1")
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&model.Deposit{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNotifySweepSuccessCreditsBalance(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "dave", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategySpotScalping, model.NetworkBEP20)
	require.NoError(t, err)

	amount := decimal.RequireFromString("500")
	_, err = svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkBEP20, amount, "0xhash2")
	require.NoError(t, err)

	// worker 取钥即视为归集发起
	key, err := svc.EncryptedKey(ctx, wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, "encrypted-blob", key)

	swept, err := svc.NotifySweep(ctx, *wallet.Address, true, "0xsweep1", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.WalletStatusSweepSuccess, swept.Status)

	// 归集成功才入账，账户跟随钱包的 (网络, 策略)
	var account model.InvestmentAccount
	require.NoError(t, db.Where("user_id = ? AND network = ? AND strategy = ?",
		user.ID, model.NetworkBEP20, StrategySpotScalping).First(&account).Error)
	assert.True(t, account.Balance.Equal(amount))

	var entry model.LedgerEntry
	require.NoError(t, db.Where("reason = ?", model.LedgerReasonSweepCredit).First(&entry).Error)
	assert.Equal(t, account.ID, entry.AccountID)

	// 重复的成功回调：幂等，不二次入账
	_, err = svc.NotifySweep(ctx, *wallet.Address, true, "0xsweep1", "", nil)
	require.NoError(t, err)
	require.NoError(t, db.First(&account, account.ID).Error)
	assert.True(t, account.Balance.Equal(amount))
}

func TestNotifySweepAmountOverride(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "heidi", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyDefiBot, model.NetworkTRC20)
	require.NoError(t, err)

	_, err = svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkTRC20,
		decimal.RequireFromString("500"), "0xhash5")
	require.NoError(t, err)
	_, err = svc.EncryptedKey(ctx, wallet.ID)
	require.NoError(t, err)

	// 非正的归集金额拒绝入账
	zero := decimal.Zero
	_, err = svc.NotifySweep(ctx, *wallet.Address, true, "0xsweep3", "", &zero)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// 实际归集金额可以与检测金额不同（链上手续费等），以回调为准
	swept := decimal.RequireFromString("499.5")
	_, err = svc.NotifySweep(ctx, *wallet.Address, true, "0xsweep3", "", &swept)
	require.NoError(t, err)

	var account model.InvestmentAccount
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&account).Error)
	assert.True(t, account.Balance.Equal(swept))
}

func TestNotifySweepFromPendingDepositRejected(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "erin", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyFlexible, model.NetworkTRC20)
	require.NoError(t, err)

	// 还没检测到充值就收到归集回调：非法迁移
	_, err = svc.NotifySweep(ctx, *wallet.Address, true, "0xsweep2", "", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestEncryptedKeyGating(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "frank", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyFlexible, model.NetworkTRC20)
	require.NoError(t, err)

	// pending_deposit 阶段不放钥匙
	_, err = svc.EncryptedKey(ctx, wallet.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	_, err = svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkTRC20,
		decimal.RequireFromString("10"), "0xhash3")
	require.NoError(t, err)

	_, err = svc.EncryptedKey(ctx, wallet.ID)
	require.NoError(t, err)

	// 取钥后状态已是 sweep_initiated
	var stored model.TemporaryWallet
	require.NoError(t, db.First(&stored, wallet.ID).Error)
	assert.Equal(t, model.WalletStatusSweepInitiated, stored.Status)

	// 归集失败后允许重取（人工恢复通道）
	_, err = svc.NotifySweep(ctx, *wallet.Address, false, "", "gas 不足", nil)
	require.NoError(t, err)
	_, err = svc.EncryptedKey(ctx, wallet.ID)
	require.NoError(t, err)
}

func TestExpireWallets(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	svc := NewWalletService(db, &fakeGenerator{}, 24)

	user := testutil.CreateUser(t, db, "grace", nil)
	wallet, err := svc.RequestWallet(ctx, user.ID, StrategyFlexible, model.NetworkTRC20)
	require.NoError(t, err)

	// 把有效期改到过去
	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&model.TemporaryWallet{}).
		Where("id = ?", wallet.ID).Update("expires_at", past).Error)

	expired, err := svc.ExpireWallets(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	var stored model.TemporaryWallet
	require.NoError(t, db.First(&stored, wallet.ID).Error)
	assert.Equal(t, model.WalletStatusExpired, stored.Status)

	// 已过期的钱包不再接受充值回调
	_, err = svc.NotifyDeposit(ctx, *wallet.Address, model.NetworkTRC20,
		decimal.RequireFromString("10"), "0xhash4")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}
