package handler

import (
	"github.com/Venterweb3-wq/zodiak/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg)

	// 用户侧接口
	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.GET("/list", h.ListAccounts)
			account.POST("/activate", h.Activate)
			account.POST("/deposit", h.Deposit)
			account.POST("/target", h.SetTarget)
			account.GET("/ledger", h.LedgerHistory)
			account.GET("/deposits", h.DepositHistory)
			account.GET("/payouts", h.PayoutHistory)
		}

		wallet := api.Group("/wallet")
		{
			wallet.POST("/request", h.RequestWallet)
			wallet.GET("/list", h.ListWallets)
		}

		withdrawal := api.Group("/withdrawal")
		{
			withdrawal.POST("/request", h.Withdraw)
			withdrawal.POST("/cancel", h.CancelWithdrawal)
			withdrawal.GET("/list", h.WithdrawalHistory)
		}

		api.GET("/referral/list", h.ListReferralAccruals)
		api.GET("/config", h.PublicConfig)
	}

	// 结算 worker 回调接口（独立鉴权）
	worker := r.Group("/worker/v1")
	worker.Use(WorkerAuthMiddleware(cfg.Gateway.CallbackToken))
	{
		worker.POST("/deposit/notify", h.NotifyDeposit)
		worker.GET("/wallet/pending", h.PendingWallets)
		worker.GET("/wallet/:id/key", h.WalletKey)
		worker.POST("/sweep/notify", h.NotifySweep)
		worker.POST("/payout/update", h.UpdatePayout)
		worker.GET("/payout/:id", h.PayoutStatus)
		worker.POST("/withdrawal/update", h.UpdateWithdrawal)
		worker.GET("/withdrawal/:id", h.WithdrawalStatus)
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
