package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bobmcallan/pulse/internal/models"
)

func testClock() *MarketClock {
	return NewMarketClock(ScheduleConfig{Timezone: "Asia/Seoul", KROpenHour: 9, KRCloseHour: 16})
}

func TestMarketClock_MarketAt(t *testing.T) {
	c := testClock()
	kst := c.loc

	cases := []struct {
		hour int
		want models.Market
	}{
		{8, models.MarketUS},
		{9, models.MarketKR},
		{12, models.MarketKR},
		{15, models.MarketKR},
		{16, models.MarketUS},
		{23, models.MarketUS},
		{0, models.MarketUS},
	}
	for _, tc := range cases {
		at := time.Date(2026, 3, 4, tc.hour, 30, 0, 0, kst)
		assert.Equal(t, tc.want, c.MarketAt(at), "hour %d", tc.hour)
	}
}

func TestMarketClock_MarketAtConvertsTimezone(t *testing.T) {
	c := testClock()
	// 01:00 UTC is 10:00 KST
	at := time.Date(2026, 3, 4, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, models.MarketKR, c.MarketAt(at))
}

func TestMarketClock_CurrentMarketUsesNow(t *testing.T) {
	fixed := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC) // 05:00 KST next day
	c := testClock().WithNow(func() time.Time { return fixed })
	assert.Equal(t, models.MarketUS, c.CurrentMarket())
}

func TestMarketClock_IsWeekend(t *testing.T) {
	c := testClock()
	// Friday 23:30 UTC is Saturday 08:30 KST
	assert.True(t, c.IsWeekend(time.Date(2026, 3, 6, 23, 30, 0, 0, time.UTC)))
	assert.False(t, c.IsWeekend(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)))
}
