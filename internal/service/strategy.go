package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// 策略标识
const (
	StrategyCrossArbitrage = "cross_arbitrage"
	StrategyDefiBot        = "defi_bot"
	StrategySpotScalping   = "spot_scalping"
	StrategyFlexible       = "flexible"
)

// 返佣统一入账的目标策略/网络（与来源策略无关的显式路由规则）
const (
	ReferralCreditStrategy = StrategyFlexible
	ReferralCreditNetwork  = "TRC20"
)

// StrategyProfile 策略档案
// 每个投资产品一份静态注册，替代运行时反射式的模型查找：
// 调度周期、周期键格式、精度、是否复投、是否要求激活解锁，全部在这里声明。
type StrategyProfile struct {
	Key              string
	RunInterval      time.Duration // 调度任务的执行间隔
	Precision        int32         // 金额小数位
	IntervalsPerDay  int64         // 日利率拆分的区间数（1 = 按天整发）
	Compounding      bool          // true: 收益直接复投入余额，不发结算消息
	RequireActivated bool          // true: 只处理已激活且过锁定期的账户
	SourceModel      string        // 返佣幂等键里的收益来源标识
}

// PeriodKey 结算周期键（幂等键的一部分）
// 按天策略用日期；活期策略用截断到区间起点的时间。
func (p *StrategyProfile) PeriodKey(now time.Time) string {
	if p.IntervalsPerDay <= 1 {
		return now.UTC().Format("2006-01-02")
	}
	interval := 24 * time.Hour / time.Duration(p.IntervalsPerDay)
	return now.UTC().Truncate(interval).Format("2006-01-02T15:04")
}

// IntervalRate 单个结算区间的利率 = 日利率 / 每日区间数
func (p *StrategyProfile) IntervalRate(dailyRate decimal.Decimal) decimal.Decimal {
	if p.IntervalsPerDay <= 1 {
		return dailyRate
	}
	return dailyRate.Div(decimal.NewFromInt(p.IntervalsPerDay))
}

// StrategyRegistry 策略静态注册表
var StrategyRegistry = map[string]*StrategyProfile{
	StrategyCrossArbitrage: {
		Key:              StrategyCrossArbitrage,
		RunInterval:      time.Hour,
		Precision:        6,
		IntervalsPerDay:  1,
		Compounding:      false,
		RequireActivated: true,
		SourceModel:      "cross_arbitrage.daily_payout",
	},
	StrategyDefiBot: {
		Key:              StrategyDefiBot,
		RunInterval:      time.Hour,
		Precision:        6,
		IntervalsPerDay:  1,
		Compounding:      false,
		RequireActivated: true,
		SourceModel:      "defi_bot.daily_payout",
	},
	StrategySpotScalping: {
		Key:              StrategySpotScalping,
		RunInterval:      time.Hour,
		Precision:        6,
		IntervalsPerDay:  1,
		Compounding:      false,
		RequireActivated: true,
		SourceModel:      "spot_scalping.daily_payout",
	},
	StrategyFlexible: {
		Key:              StrategyFlexible,
		RunInterval:      10 * time.Minute,
		Precision:        8,
		IntervalsPerDay:  144, // 每10分钟一个区间
		Compounding:      true,
		RequireActivated: false,
		SourceModel:      "flexible.payout",
	},
}

// GetStrategyProfile 按 key 查找策略档案
func GetStrategyProfile(key string) (*StrategyProfile, bool) {
	p, ok := StrategyRegistry[key]
	return p, ok
}
