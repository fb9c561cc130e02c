package database

import (
	"fmt"
	"log"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/config"
	"github.com/Venterweb3-wq/zodiak/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接
// TranslateError 打开后，唯一键冲突统一转换为 gorm.ErrDuplicatedKey，
// 幂等键的"重复即成功"判断依赖这一点。
func InitMySQL(cfg *config.MySQLConfig) *gorm.DB {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("连接 MySQL 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 DB 失败: %v", err)
	}

	// 连接池配置
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := Migrate(db); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	DB = db
	log.Println("MySQL 连接成功")
	return db
}

// Migrate 迁移全部业务表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.InvestmentAccount{},
		&model.InvestmentConfig{},
		&model.LedgerEntry{},
		&model.Deposit{},
		&model.DailyPayout{},
		&model.TemporaryWallet{},
		&model.WithdrawalRequest{},
		&model.ReferralSettings{},
		&model.ReferralAccrual{},
		&model.OutboxMessage{},
	)
}
