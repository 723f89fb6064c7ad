package forecast

import "errors"

var (
	// ErrInsufficientData means the training series is empty or has fewer
	// than two distinct timestamps, so nothing can be fit
	ErrInsufficientData = errors.New("insufficient data to fit a forecast model")

	// ErrInvalidRange means the caller's date range selected no readings
	ErrInvalidRange = errors.New("selected date range contains no readings")

	// ErrEmptyHistory means metrics were requested over zero aligned points
	ErrEmptyHistory = errors.New("no history to evaluate")

	ErrInvalidHorizon     = errors.New("invalid forecast horizon")
	ErrUnknownSeasonality = errors.New("unknown seasonality choice")
	ErrUnknownMode        = errors.New("unknown seasonality mode")

	ErrQueueFull   = errors.New("forecast queue is full")
	ErrJobNotFound = errors.New("forecast job not found")
)
