package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensqt/daytrader/pkg/logging"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func newTestMonitor(fx string) *Monitor {
	return NewMonitor(dec(fx), dec("-0.05"), dec("0.1"), logging.NewLogger(logging.ErrorLevel))
}

func TestFiguresUnknownUntilFirstPush(t *testing.T) {
	m := newTestMonitor("1")

	_, ok := m.PortfolioSize()
	assert.False(t, ok)
	_, ok = m.PercentInvested()
	assert.False(t, ok)
	_, ok = m.DailyPnL()
	assert.False(t, ok)
	assert.False(t, m.MaxDailyLossReached())
}

func TestPercentInvested(t *testing.T) {
	m := newTestMonitor("1")

	m.OnAccountValue(KeyNetLiquidation, dec("100000"), "USD")
	m.OnAccountValue(KeyGrossPositionValue, dec("18000"), "USD")

	inv, ok := m.PercentInvested()
	require.True(t, ok)
	assert.True(t, inv.Equal(dec("0.18")), inv.String())

	size, ok := m.PortfolioSize()
	require.True(t, ok)
	assert.True(t, size.Equal(dec("100000")))
}

func TestDailyPnLConvertsFX(t *testing.T) {
	m := newTestMonitor("150")

	m.OnAccountValue(KeyNetLiquidation, dec("100000"), "JPY")
	m.OnAccountValue(KeyRealizedPnL, dec("30000"), BaseCurrency)
	m.OnAccountValue(KeyUnrealizedPnL, dec("-15000"), BaseCurrency)

	pnl, ok := m.DailyPnL()
	require.True(t, ok)
	assert.True(t, pnl.Equal(dec("100")), pnl.String())
}

func TestNonBasePnLIgnored(t *testing.T) {
	m := newTestMonitor("1")
	m.OnAccountValue(KeyRealizedPnL, dec("500"), "USD")
	m.OnAccountValue(KeyUnrealizedPnL, dec("500"), "EUR")

	_, ok := m.DailyPnL()
	assert.False(t, ok)
}

// The breaker latches exactly once and never unlatches on recovery.
func TestBreakerLatchesOnce(t *testing.T) {
	m := newTestMonitor("1")
	m.OnAccountValue(KeyNetLiquidation, dec("100000"), "USD")

	// +0.5%: fine
	m.OnAccountValue(KeyRealizedPnL, dec("0"), BaseCurrency)
	m.OnAccountValue(KeyUnrealizedPnL, dec("500"), BaseCurrency)
	assert.False(t, m.MaxDailyLossReached())

	// -5.2%: latches
	m.OnAccountValue(KeyUnrealizedPnL, dec("-5200"), BaseCurrency)
	assert.True(t, m.MaxDailyLossReached())

	// recovery to -2% does not unlatch
	m.OnAccountValue(KeyUnrealizedPnL, dec("-2000"), BaseCurrency)
	assert.True(t, m.MaxDailyLossReached())
}

func TestBreakerExactThreshold(t *testing.T) {
	m := newTestMonitor("1")
	m.OnAccountValue(KeyNetLiquidation, dec("100000"), "USD")
	m.OnAccountValue(KeyRealizedPnL, dec("-5000"), BaseCurrency)
	m.OnAccountValue(KeyUnrealizedPnL, dec("0"), BaseCurrency)

	// -5.0% meets the <= threshold
	assert.True(t, m.MaxDailyLossReached())
}

func TestUnknownKeysIgnored(t *testing.T) {
	m := newTestMonitor("1")
	m.OnAccountValue("BuyingPower", dec("400000"), "USD")

	_, ok := m.PortfolioSize()
	assert.False(t, ok)
}
