package forecast

import (
	"fmt"
	"strings"
)

// SeasonalityChoice names the optional custom seasonal term a user picks
type SeasonalityChoice string

const (
	NoSeasonality SeasonalityChoice = "No Seasonality"
	Lunar         SeasonalityChoice = "Lunar"
	CalendarMonth SeasonalityChoice = "Calendar Month"
)

// Mode is how seasonal terms combine with the trend
type Mode string

const (
	ModeNone           Mode = "none"
	ModeAdditive       Mode = "additive"
	ModeMultiplicative Mode = "multiplicative"
)

// Fixed model parameters
const (
	LunarPeriodDays         = 29.53
	CalendarMonthPeriodDays = 30.5
	CustomFourierOrder      = 5

	DefaultChangepointPriorScale = 0.01
	DefaultYearlyOrder           = 10
	DefaultDailyOrder            = 4
	DefaultIntervalWidth         = 0.8

	DefaultHorizon    = 72
	DefaultMaxHorizon = 240
)

// CustomSeasonality is a user-selected periodic term
type CustomSeasonality struct {
	Name         string  `json:"name"`
	PeriodDays   float64 `json:"period_days"`
	FourierOrder int     `json:"fourier_order"`
}

// Config fully describes one model fit. It is built fresh for every request
// and never shared between fits.
type Config struct {
	Seasonality           SeasonalityChoice  `json:"seasonality"`
	Mode                  Mode               `json:"mode"`
	Custom                *CustomSeasonality `json:"custom,omitempty"`
	ChangepointPriorScale float64            `json:"changepoint_prior_scale"`
	YearlySeasonality     bool               `json:"yearly_seasonality"`
	YearlyOrder           int                `json:"yearly_order"`
	WeeklySeasonality     bool               `json:"weekly_seasonality"`
	DailySeasonality      bool               `json:"daily_seasonality"`
	DailyOrder            int                `json:"daily_order"`
	IntervalWidth         float64            `json:"interval_width"`
}

// ParseSeasonality accepts the display names plus short API aliases
func ParseSeasonality(s string) (SeasonalityChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "no seasonality":
		return NoSeasonality, nil
	case "lunar":
		return Lunar, nil
	case "calendar month", "calendar_month", "month":
		return CalendarMonth, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSeasonality, s)
}

// ParseMode accepts additive or multiplicative; empty stays empty so that
// NewConfig can pick the default
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "none":
		return ModeNone, nil
	case "additive":
		return ModeAdditive, nil
	case "multiplicative":
		return ModeMultiplicative, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// NewConfig builds the model configuration for a seasonality choice and mode.
// Without a custom term the mode is always ModeNone; with one, an empty mode
// means additive.
func NewConfig(choice SeasonalityChoice, mode Mode) (Config, error) {
	cfg := Config{
		Seasonality:           choice,
		ChangepointPriorScale: DefaultChangepointPriorScale,
		YearlySeasonality:     true,
		YearlyOrder:           DefaultYearlyOrder,
		WeeklySeasonality:     false,
		DailySeasonality:      true,
		DailyOrder:            DefaultDailyOrder,
		IntervalWidth:         DefaultIntervalWidth,
	}

	switch choice {
	case NoSeasonality:
		cfg.Mode = ModeNone
		return cfg, nil
	case Lunar:
		cfg.Custom = &CustomSeasonality{Name: "lunar", PeriodDays: LunarPeriodDays, FourierOrder: CustomFourierOrder}
	case CalendarMonth:
		cfg.Custom = &CustomSeasonality{Name: "monthly", PeriodDays: CalendarMonthPeriodDays, FourierOrder: CustomFourierOrder}
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownSeasonality, choice)
	}

	switch mode {
	case "":
		cfg.Mode = ModeAdditive
	case ModeAdditive, ModeMultiplicative:
		cfg.Mode = mode
	default:
		return Config{}, fmt.Errorf("%w: %q with %s seasonality", ErrUnknownMode, mode, choice)
	}
	return cfg, nil
}

// Multiplicative reports whether seasonal terms scale the trend
func (c Config) Multiplicative() bool {
	return c.Mode == ModeMultiplicative
}
