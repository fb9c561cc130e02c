package handler

import (
	"strconv"
	"time"

	"github.com/Venterweb3-wq/zodiak/internal/config"
	"github.com/Venterweb3-wq/zodiak/internal/gateway"
	"github.com/Venterweb3-wq/zodiak/internal/model"
	"github.com/Venterweb3-wq/zodiak/internal/service"
	"github.com/Venterweb3-wq/zodiak/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService    *service.AccountService
	walletService     *service.WalletService
	withdrawalService *service.WithdrawalService
	payoutService     *service.PayoutService
	referralService   *service.ReferralService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	generator := gateway.NewClient(&cfg.Gateway)
	holder := "scheduler-" + strconv.Itoa(cfg.Business.WorkerID)
	return &Handler{
		accountService:    service.NewAccountService(db),
		walletService:     service.NewWalletService(db, generator, cfg.Business.WalletExpiryHours),
		withdrawalService: service.NewWithdrawalService(db, rdb, cfg.Kafka.PayoutTopicPrefix),
		payoutService:     service.NewPayoutService(db, rdb, cfg.Kafka.PayoutTopicPrefix, holder),
		referralService:   service.NewReferralService(db),
	}
}

// accountQuery 账户定位三元组，大多数用户接口都用它
type accountQuery struct {
	UserID   int64
	Network  string
	Strategy string
}

func parseAccountQuery(c *gin.Context) (*accountQuery, bool) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return nil, false
	}
	network := c.Query("network")
	strategy := c.Query("strategy")
	if network == "" || strategy == "" {
		response.ParamError(c, "network 和 strategy 参数不能为空")
		return nil, false
	}
	return &accountQuery{UserID: userID, Network: network, Strategy: strategy}, true
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

// accountView 账户视图，附带锁定状态的派生字段
func accountView(a *model.InvestmentAccount) gin.H {
	now := time.Now()
	view := gin.H{
		"id":                    a.ID,
		"user_id":               a.UserID,
		"network":               a.Network,
		"strategy":              a.Strategy,
		"balance":               a.Balance,
		"activated":             a.Activated,
		"activation_date":       a.ActivationDate,
		"lock_days":             a.LockDays,
		"locked":                a.IsLocked(now),
		"target_wallet":         a.TargetWallet,
		"target_wallet_network": a.TargetWalletNetwork,
	}
	if unlock := a.UnlockDate(); unlock != nil {
		view["unlock_date"] = unlock
	}
	return view
}

// ============================================================
// 账户相关接口
// ============================================================

// ListAccounts 用户在某策略下的账户列表
// GET /api/v1/account/list?user_id=xxx&strategy=xxx
func (h *Handler) ListAccounts(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	strategy := c.Query("strategy")
	if strategy == "" {
		response.ParamError(c, "strategy 参数不能为空")
		return
	}

	accounts, err := h.accountService.ListAccounts(c.Request.Context(), userID, strategy)
	if err != nil {
		response.FromError(c, err)
		return
	}

	views := make([]gin.H, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView(a))
	}
	response.Success(c, gin.H{"accounts": views})
}

// ActivateRequest 激活账户请求
type ActivateRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Network  string `json:"network" binding:"required"`
	Strategy string `json:"strategy" binding:"required"`
}

// Activate 激活账户
// POST /api/v1/account/activate
func (h *Handler) Activate(c *gin.Context) {
	var req ActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.Activate(c.Request.Context(), req.UserID, req.Network, req.Strategy)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, accountView(account))
}

// DepositRequest 手动入金请求
type DepositRequest struct {
	UserID   int64   `json:"user_id" binding:"required"`
	Network  string  `json:"network" binding:"required"`
	Strategy string  `json:"strategy" binding:"required"`
	Amount   string  `json:"amount" binding:"required"`
	TxHash   *string `json:"tx_hash"`
}

// Deposit 手动入金
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法的数字")
		return
	}

	deposit, err := h.accountService.ManualDeposit(c.Request.Context(),
		req.UserID, req.Network, req.Strategy, amount, req.TxHash)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, deposit)
}

// SetTargetRequest 配置收款地址请求
type SetTargetRequest struct {
	UserID              int64  `json:"user_id" binding:"required"`
	Network             string `json:"network" binding:"required"`
	Strategy            string `json:"strategy" binding:"required"`
	TargetWallet        string `json:"target_wallet" binding:"required"`
	TargetWalletNetwork string `json:"target_wallet_network" binding:"required"`
}

// SetTarget 配置收款地址
// POST /api/v1/account/target
func (h *Handler) SetTarget(c *gin.Context) {
	var req SetTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.accountService.SetTarget(c.Request.Context(),
		req.UserID, req.Network, req.Strategy, req.TargetWallet, req.TargetWalletNetwork)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "收款地址已更新"})
}

// LedgerHistory 账变流水
// GET /api/v1/account/ledger?user_id=xxx&network=xxx&strategy=xxx
func (h *Handler) LedgerHistory(c *gin.Context) {
	q, ok := parseAccountQuery(c)
	if !ok {
		return
	}

	entries, err := h.accountService.LedgerHistory(c.Request.Context(),
		q.UserID, q.Network, q.Strategy, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

// DepositHistory 入金历史
// GET /api/v1/account/deposits?user_id=xxx&network=xxx&strategy=xxx
func (h *Handler) DepositHistory(c *gin.Context) {
	q, ok := parseAccountQuery(c)
	if !ok {
		return
	}

	deposits, err := h.accountService.DepositHistory(c.Request.Context(),
		q.UserID, q.Network, q.Strategy, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"deposits": deposits})
}

// PayoutHistory 收益发放历史
// GET /api/v1/account/payouts?user_id=xxx&network=xxx&strategy=xxx
func (h *Handler) PayoutHistory(c *gin.Context) {
	q, ok := parseAccountQuery(c)
	if !ok {
		return
	}

	payouts, err := h.accountService.PayoutHistory(c.Request.Context(),
		q.UserID, q.Network, q.Strategy, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"payouts": payouts})
}

// PublicConfig 策略公开配置
// GET /api/v1/config?strategy=xxx
func (h *Handler) PublicConfig(c *gin.Context) {
	strategy := c.Query("strategy")
	if strategy == "" {
		response.ParamError(c, "strategy 参数不能为空")
		return
	}

	cfg, err := h.accountService.PublicConfig(c.Request.Context(), strategy)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{
		"strategy":    cfg.Strategy,
		"payout_rate": cfg.PayoutRate,
		"lock_days":   cfg.LockDays,
		"min_deposit": cfg.MinDeposit,
	})
}

// ============================================================
// 临时充值钱包接口
// ============================================================

// RequestWalletRequest 申请充值地址请求
type RequestWalletRequest struct {
	UserID   int64  `json:"user_id" binding:"required"`
	Strategy string `json:"strategy" binding:"required"`
	Network  string `json:"network" binding:"required"`
}

// RequestWallet 申请临时充值地址
// POST /api/v1/wallet/request
func (h *Handler) RequestWallet(c *gin.Context) {
	var req RequestWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	wallet, err := h.walletService.RequestWallet(c.Request.Context(), req.UserID, req.Strategy, req.Network)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wallet)
}

// ListWallets 用户临时钱包列表
// GET /api/v1/wallet/list?user_id=xxx&strategy=xxx
func (h *Handler) ListWallets(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}
	strategy := c.Query("strategy")
	if strategy == "" {
		response.ParamError(c, "strategy 参数不能为空")
		return
	}

	wallets, err := h.walletService.ListWallets(c.Request.Context(), userID, strategy, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"wallets": wallets})
}

// ============================================================
// 提现接口
// ============================================================

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Network   string `json:"network" binding:"required"`
	Strategy  string `json:"strategy" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	ToAddress string `json:"to_address"` // 缺省回退账户配置的收款地址
	ToNetwork string `json:"to_network"`
}

// Withdraw 发起提现
// POST /api/v1/withdrawal/request
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法的数字")
		return
	}

	request, err := h.withdrawalService.Request(c.Request.Context(),
		req.UserID, req.Network, req.Strategy, amount, req.ToAddress, req.ToNetwork)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, request)
}

// CancelWithdrawalRequest 取消提现请求
type CancelWithdrawalRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	RequestID string `json:"request_id" binding:"required"`
}

// CancelWithdrawal 取消提现
// POST /api/v1/withdrawal/cancel
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	var req CancelWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.withdrawalService.Cancel(c.Request.Context(), req.UserID, req.RequestID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, request)
}

// WithdrawalHistory 提现历史
// GET /api/v1/withdrawal/list?user_id=xxx&network=xxx&strategy=xxx
func (h *Handler) WithdrawalHistory(c *gin.Context) {
	q, ok := parseAccountQuery(c)
	if !ok {
		return
	}

	requests, err := h.accountService.WithdrawalHistory(c.Request.Context(),
		q.UserID, q.Network, q.Strategy, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawals": requests})
}

// ============================================================
// 返佣接口
// ============================================================

// ListReferralAccruals 用户收到的返佣记录
// GET /api/v1/referral/list?user_id=xxx
func (h *Handler) ListReferralAccruals(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	accruals, err := h.referralService.ListAccruals(c.Request.Context(), userID, parseLimit(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"accruals": accruals})
}

// ============================================================
// 结算 worker 回调接口
// ============================================================

// NotifyDepositRequest 充值检测回调
type NotifyDepositRequest struct {
	Address string `json:"address" binding:"required"`
	Network string `json:"network" binding:"required"`
	Amount  string `json:"amount" binding:"required"`
	TxHash  string `json:"tx_hash" binding:"required"`
}

// NotifyDeposit worker 回调：临时地址检测到充值
// POST /worker/v1/deposit/notify
func (h *Handler) NotifyDeposit(c *gin.Context) {
	var req NotifyDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.ParamError(c, "amount 不是合法的数字")
		return
	}

	wallet, err := h.walletService.NotifyDeposit(c.Request.Context(), req.Address, req.Network, amount, req.TxHash)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wallet)
}

// PendingWallets 等待充值的钱包列表（worker 轮询）
// GET /worker/v1/wallet/pending
func (h *Handler) PendingWallets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	wallets, err := h.walletService.PendingWallets(c.Request.Context(), limit)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"wallets": wallets})
}

// WalletKey worker 取钱包私钥密文以发起归集
// GET /worker/v1/wallet/:id/key
func (h *Handler) WalletKey(c *gin.Context) {
	walletID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	key, err := h.walletService.EncryptedKey(c.Request.Context(), walletID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"encrypted_private_key": key})
}

// NotifySweepRequest 归集结果回调
type NotifySweepRequest struct {
	Address      string  `json:"address" binding:"required"`
	Success      *bool   `json:"success" binding:"required"`
	SweepTxID    string  `json:"sweep_tx_id"`
	ErrorMessage string  `json:"error_message"`
	SweptAmount  *string `json:"swept_amount"` // 缺省回退检测到的充值金额
}

// NotifySweep worker 回调：资金归集结果
// POST /worker/v1/sweep/notify
func (h *Handler) NotifySweep(c *gin.Context) {
	var req NotifySweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var sweptAmount *decimal.Decimal
	if req.SweptAmount != nil {
		amount, err := decimal.NewFromString(*req.SweptAmount)
		if err != nil {
			response.ParamError(c, "swept_amount 不是合法的数字")
			return
		}
		sweptAmount = &amount
	}

	wallet, err := h.walletService.NotifySweep(c.Request.Context(),
		req.Address, *req.Success, req.SweepTxID, req.ErrorMessage, sweptAmount)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, wallet)
}

// UpdatePayoutRequest 发放执行结果回调
type UpdatePayoutRequest struct {
	PayoutID int64   `json:"payout_id" binding:"required"`
	Success  *bool   `json:"success" binding:"required"`
	TxHash   *string `json:"tx_hash"`
}

// UpdatePayout worker 回调：收益发放的链上执行结果
// POST /worker/v1/payout/update
func (h *Handler) UpdatePayout(c *gin.Context) {
	var req UpdatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	payout, err := h.payoutService.UpdateResult(c.Request.Context(), req.PayoutID, *req.Success, req.TxHash)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payout)
}

// PayoutStatus worker 查询发放记录
// GET /worker/v1/payout/:id
func (h *Handler) PayoutStatus(c *gin.Context) {
	payoutID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return
	}

	payout, err := h.payoutService.Status(c.Request.Context(), payoutID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, payout)
}

// UpdateWithdrawalRequest 提现执行结果回调
type UpdateWithdrawalRequest struct {
	RequestID    string  `json:"request_id" binding:"required"`
	Status       string  `json:"status" binding:"required"`
	TxHash       *string `json:"tx_hash"`
	ErrorMessage string  `json:"error_message"`
}

// UpdateWithdrawal worker 回调：提现状态推进
// POST /worker/v1/withdrawal/update
func (h *Handler) UpdateWithdrawal(c *gin.Context) {
	var req UpdateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	request, err := h.withdrawalService.UpdateStatus(c.Request.Context(),
		req.RequestID, req.Status, req.TxHash, req.ErrorMessage)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, request)
}

// WithdrawalStatus worker 查询提现请求（处理前校验）
// GET /worker/v1/withdrawal/:id
func (h *Handler) WithdrawalStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.ParamError(c, "id 参数错误")
		return
	}

	request, err := h.withdrawalService.Status(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, request)
}
