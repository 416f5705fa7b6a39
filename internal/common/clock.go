package common

import (
	"time"

	"github.com/bobmcallan/pulse/internal/models"
)

// MarketClock decides which market a run covers from wall-clock time.
type MarketClock struct {
	loc       *time.Location
	openHour  int
	closeHour int
	now       func() time.Time
}

// NewMarketClock builds a clock from the schedule config.
func NewMarketClock(cfg ScheduleConfig) *MarketClock {
	return &MarketClock{
		loc:       cfg.Location(),
		openHour:  cfg.KROpenHour,
		closeHour: cfg.KRCloseHour,
		now:       time.Now,
	}
}

// WithNow replaces the time source.
func (c *MarketClock) WithNow(now func() time.Time) *MarketClock {
	c.now = now
	return c
}

// Now returns the current time in the schedule timezone.
func (c *MarketClock) Now() time.Time {
	return c.now().In(c.loc)
}

// MarketAt maps the local hour onto a market: the domestic session window
// selects KR, every other hour selects US.
func (c *MarketClock) MarketAt(t time.Time) models.Market {
	h := t.In(c.loc).Hour()
	if h >= c.openHour && h < c.closeHour {
		return models.MarketKR
	}
	return models.MarketUS
}

// CurrentMarket is MarketAt(Now()).
func (c *MarketClock) CurrentMarket() models.Market {
	return c.MarketAt(c.Now())
}

// IsWeekend reports whether t falls on Saturday or Sunday locally.
func (c *MarketClock) IsWeekend(t time.Time) bool {
	switch t.In(c.loc).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}
