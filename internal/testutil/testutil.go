package testutil

import (
	"testing"

	"github.com/Venterweb3-wq/zodiak/internal/infrastructure/database"
	"github.com/Venterweb3-wq/zodiak/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB 内存 SQLite 测试库，迁移全部业务表
// TranslateError 必须和生产配置一样打开，幂等键的"重复即成功"判断依赖它。
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	// :memory: 每个连接是独立的库，收紧到单连接
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser 创建测试用户
func CreateUser(t *testing.T, db *gorm.DB, username string, referredByID *int64) *model.User {
	t.Helper()
	user := &model.User{Username: username, ReferredByID: referredByID}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateAccount 创建测试账户
func CreateAccount(t *testing.T, db *gorm.DB, userID int64, network, strategy string, balance decimal.Decimal) *model.InvestmentAccount {
	t.Helper()
	account := &model.InvestmentAccount{
		UserID:   userID,
		Network:  network,
		Strategy: strategy,
		Balance:  balance,
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

// CreateConfig 创建策略配置
func CreateConfig(t *testing.T, db *gorm.DB, strategy string, payoutRate, minDeposit decimal.Decimal, lockDays int) *model.InvestmentConfig {
	t.Helper()
	cfg := &model.InvestmentConfig{
		Strategy:   strategy,
		PayoutRate: payoutRate,
		LockDays:   lockDays,
		MinDeposit: minDeposit,
		IsActive:   true,
	}
	require.NoError(t, db.Create(cfg).Error)
	return cfg
}
