package restserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/lunar"
)

// badRequest marks errors caused by the caller's query parameters
type badRequest struct {
	msg string
}

func (e *badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

// RangeResponse describes the loaded series
type RangeResponse struct {
	Start    tide.Date  `json:"start"`
	End      tide.Date  `json:"end"`
	Readings int        `json:"readings"`
	First    *time.Time `json:"first,omitempty"`
	Last     *time.Time `json:"last,omitempty"`
}

// ReadingResponse is one classified reading
type ReadingResponse struct {
	Time     time.Time     `json:"time"`
	Level    float64       `json:"level"`
	Category tide.Category `json:"category"`
	tide.Flags
}

// DailyResponse is one day's maximum, annotated with the moon phase at noon
type DailyResponse struct {
	Date     tide.Date       `json:"date"`
	MaxLevel float64         `json:"max_level"`
	Category tide.Category   `json:"category"`
	Moon     lunar.MoonPhase `json:"moon"`
	tide.Flags
}

// SummaryResponse wraps per-period counts
type SummaryResponse struct {
	By      string               `json:"by"`
	Basis   string               `json:"basis"`
	Periods []tide.PeriodSummary `json:"periods"`
}

// YearlyMeanResponse wraps yearly means above a threshold
type YearlyMeanResponse struct {
	Threshold float64           `json:"threshold"`
	Years     []tide.YearlyMean `json:"years"`
}

// ForecastRequest is the body of POST /api/forecast and /api/forecast/jobs
type ForecastRequest struct {
	Start       string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End         string `json:"end" validate:"omitempty,datetime=2006-01-02"`
	Seasonality string `json:"seasonality" validate:"omitempty,max=32"`
	Mode        string `json:"mode" validate:"omitempty,max=32"`
	Horizon     int    `json:"horizon" validate:"gte=0"`
	// Tail trims the in-sample part of the response to the last N points
	Tail *int `json:"tail,omitempty" validate:"omitempty,gte=0"`
}

// ForecastResponse is a completed forecast
type ForecastResponse struct {
	Config       forecast.Config  `json:"config"`
	Forecast     forecast.Result  `json:"forecast"`
	Metrics      forecast.Metrics `json:"metrics"`
	TrainingRows int              `json:"training_rows"`
	ElapsedMS    int64            `json:"elapsed_ms"`
}

// JobResponse is a forecast job snapshot
type JobResponse struct {
	ID        string            `json:"id"`
	Request   forecast.Request  `json:"request"`
	Status    string            `json:"status"`
	Stage     string            `json:"stage"`
	Submitted time.Time         `json:"submitted"`
	Started   *time.Time        `json:"started,omitempty"`
	Finished  *time.Time        `json:"finished,omitempty"`
	Error     string            `json:"error,omitempty"`
	Outcome   *ForecastResponse `json:"outcome,omitempty"`
}

// queryRange reads start and end, defaulting each to the series bounds
func (h *Handlers) queryRange(req *http.Request) (tide.Date, tide.Date, error) {
	first, last, _ := h.controller.series.Bounds()
	q := req.URL.Query()
	start, err := optionalDate(q.Get("start"), first)
	if err != nil {
		return tide.Date{}, tide.Date{}, badRequestf("invalid start: %v", err)
	}
	end, err := optionalDate(q.Get("end"), last)
	if err != nil {
		return tide.Date{}, tide.Date{}, badRequestf("invalid end: %v", err)
	}
	return start, end, nil
}

func optionalDate(s string, def tide.Date) (tide.Date, error) {
	if s == "" {
		return def, nil
	}
	return tide.ParseDate(s)
}

// toRequest converts a validated body into a forecast request
func (h *Handlers) toRequest(body ForecastRequest) (forecast.Request, error) {
	first, last, _ := h.controller.series.Bounds()
	start, err := optionalDate(body.Start, first)
	if err != nil {
		return forecast.Request{}, badRequestf("invalid start: %v", err)
	}
	end, err := optionalDate(body.End, last)
	if err != nil {
		return forecast.Request{}, badRequestf("invalid end: %v", err)
	}
	choice, err := forecast.ParseSeasonality(body.Seasonality)
	if err != nil {
		return forecast.Request{}, err
	}
	mode, err := forecast.ParseMode(body.Mode)
	if err != nil {
		return forecast.Request{}, err
	}
	return forecast.Request{
		Start:       start,
		End:         end,
		Seasonality: choice,
		Mode:        mode,
		Horizon:     body.Horizon,
	}, nil
}

func transformReadings(readings []tide.ClassifiedReading) []ReadingResponse {
	out := make([]ReadingResponse, len(readings))
	for i, r := range readings {
		out[i] = ReadingResponse{
			Time:     r.Time,
			Level:    r.Level,
			Category: r.Category,
			Flags:    r.Category.Flags(),
		}
	}
	return out
}

func transformDaily(days []tide.DailyAggregate) []DailyResponse {
	out := make([]DailyResponse, len(days))
	for i, d := range days {
		out[i] = DailyResponse{
			Date:     d.Date,
			MaxLevel: d.MaxLevel,
			Category: d.Category,
			Moon:     lunar.Calculate(d.Date.Midday()),
			Flags:    d.Category.Flags(),
		}
	}
	return out
}

// transformOutcome builds the response body; tail < 0 keeps all history
func transformOutcome(out *forecast.Outcome, tail int) *ForecastResponse {
	if out == nil {
		return nil
	}
	return &ForecastResponse{
		Config:       out.Config,
		Forecast:     out.Forecast.Tail(tail),
		Metrics:      out.Metrics,
		TrainingRows: out.TrainingRows,
		ElapsedMS:    out.Elapsed.Milliseconds(),
	}
}

func transformJob(snap forecast.JobSnapshot, tail int) JobResponse {
	return JobResponse{
		ID:        snap.ID.String(),
		Request:   snap.Request,
		Status:    string(snap.Status),
		Stage:     string(snap.Stage),
		Submitted: snap.Submitted,
		Started:   snap.Started,
		Finished:  snap.Finished,
		Error:     snap.Error,
		Outcome:   transformOutcome(snap.Outcome, tail),
	}
}

// queryTail reads ?tail=N; missing means keep everything
func queryTail(req *http.Request) (int, error) {
	s := req.URL.Query().Get("tail")
	if s == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badRequestf("invalid tail %q", s)
	}
	return n, nil
}
