package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodKeyDaily(t *testing.T) {
	profile, ok := GetStrategyProfile(StrategyCrossArbitrage)
	require.True(t, ok)

	now := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "2026-08-31", profile.PeriodKey(now))

	// 同一天内任何时刻周期键相同
	assert.Equal(t, profile.PeriodKey(now),
		profile.PeriodKey(time.Date(2026, 8, 31, 0, 0, 1, 0, time.UTC)))
}

func TestPeriodKeyFlexibleInterval(t *testing.T) {
	profile, ok := GetStrategyProfile(StrategyFlexible)
	require.True(t, ok)

	// 截断到10分钟区间起点
	assert.Equal(t, "2026-08-31T14:10",
		profile.PeriodKey(time.Date(2026, 8, 31, 14, 17, 42, 0, time.UTC)))
	assert.Equal(t, "2026-08-31T14:10",
		profile.PeriodKey(time.Date(2026, 8, 31, 14, 10, 0, 0, time.UTC)))
	assert.Equal(t, "2026-08-31T14:20",
		profile.PeriodKey(time.Date(2026, 8, 31, 14, 20, 0, 0, time.UTC)))
}

func TestIntervalRate(t *testing.T) {
	daily := decimal.RequireFromString("0.00144")

	fixed, _ := GetStrategyProfile(StrategyDefiBot)
	assert.True(t, fixed.IntervalRate(daily).Equal(daily))

	flexible, _ := GetStrategyProfile(StrategyFlexible)
	assert.True(t, flexible.IntervalRate(daily).Equal(decimal.RequireFromString("0.00001")))
}

func TestRegistryCoversAllStrategies(t *testing.T) {
	for _, key := range []string{StrategyCrossArbitrage, StrategyDefiBot, StrategySpotScalping, StrategyFlexible} {
		profile, ok := GetStrategyProfile(key)
		require.True(t, ok, key)
		assert.Equal(t, key, profile.Key)
	}

	// 固定收益策略走外部结算；flexible 复投且不要求激活
	for _, key := range []string{StrategyCrossArbitrage, StrategyDefiBot, StrategySpotScalping} {
		profile, _ := GetStrategyProfile(key)
		assert.True(t, profile.RequireActivated, key)
		assert.False(t, profile.Compounding, key)
	}
	flexible, _ := GetStrategyProfile(StrategyFlexible)
	assert.False(t, flexible.RequireActivated)
	assert.True(t, flexible.Compounding)
}
