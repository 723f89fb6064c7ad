package restserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/responseformat"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds forecast request bodies
const maxBodyBytes = 64 << 10

// the series never changes while the process runs
var cacheHeaders = map[string]string{"Cache-Control": "max-age=3600"}

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// Healthz reports liveness
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	h.respond(w, req, map[string]any{"status": "ok", "readings": h.controller.series.Len()}, nil)
}

// GetRange returns the date bounds of the loaded series
func (h *Handlers) GetRange(w http.ResponseWriter, req *http.Request) {
	s := h.controller.series
	resp := RangeResponse{Readings: s.Len()}
	resp.Start, resp.End, _ = s.Bounds()
	if first, ok := s.First(); ok {
		resp.First = &first.Time
	}
	if last, ok := s.Last(); ok {
		resp.Last = &last.Time
	}
	h.respond(w, req, resp, cacheHeaders)
}

// GetReadings returns every classified reading in the requested range
func (h *Handlers) GetReadings(w http.ResponseWriter, req *http.Request) {
	filtered, ok := h.filtered(w, req)
	if !ok {
		return
	}
	h.respond(w, req, transformReadings(tide.ClassifyAll(filtered)), cacheHeaders)
}

// GetDaily returns daily maxima with moon phase annotations
func (h *Handlers) GetDaily(w http.ResponseWriter, req *http.Request) {
	filtered, ok := h.filtered(w, req)
	if !ok {
		return
	}
	h.respond(w, req, transformDaily(tide.DailyMax(filtered)), cacheHeaders)
}

// GetSummary counts category occurrences per month or year. basis=daily
// counts days by their maximum; the default counts individual readings.
func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	by := q.Get("by")
	if by == "" {
		by = "month"
	}
	period, err := tide.ParsePeriod(by)
	if err != nil {
		h.writeError(w, req, badRequestf("%v", err))
		return
	}

	filtered, ok := h.filtered(w, req)
	if !ok {
		return
	}

	resp := SummaryResponse{By: period.String(), Basis: q.Get("basis")}
	switch resp.Basis {
	case "", "readings":
		resp.Basis = "readings"
		resp.Periods = tide.Summarize(tide.ClassifyAll(filtered), period)
	case "daily":
		resp.Periods = tide.Summarize(tide.DailyMax(filtered), period)
	default:
		h.writeError(w, req, badRequestf("unknown basis %q; use readings or daily", resp.Basis))
		return
	}
	h.respond(w, req, resp, cacheHeaders)
}

// GetTotals counts days per category over the range
func (h *Handlers) GetTotals(w http.ResponseWriter, req *http.Request) {
	filtered, ok := h.filtered(w, req)
	if !ok {
		return
	}
	h.respond(w, req, tide.Totals(tide.DailyMax(filtered)), cacheHeaders)
}

// GetYearlyMean averages daily maxima above a threshold for each year
func (h *Handlers) GetYearlyMean(w http.ResponseWriter, req *http.Request) {
	threshold := tide.SustainedThreshold
	if s := req.URL.Query().Get("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.writeError(w, req, badRequestf("invalid threshold %q", s))
			return
		}
		threshold = v
	}

	filtered, ok := h.filtered(w, req)
	if !ok {
		return
	}
	h.respond(w, req, YearlyMeanResponse{
		Threshold: threshold,
		Years:     tide.YearlyMeanAbove(tide.DailyMax(filtered), threshold),
	}, cacheHeaders)
}

// PostForecast fits a model on the request path and returns the forecast
func (h *Handlers) PostForecast(w http.ResponseWriter, req *http.Request) {
	body, fr, ok := h.decodeForecast(w, req)
	if !ok {
		return
	}

	out, err := h.controller.configurator.Run(req.Context(), h.controller.series, fr)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.respond(w, req, transformOutcome(out, tailOf(body)), nil)
}

// SubmitForecastJob queues a forecast on the background runner
func (h *Handlers) SubmitForecastJob(w http.ResponseWriter, req *http.Request) {
	_, fr, ok := h.decodeForecast(w, req)
	if !ok {
		return
	}

	snap, err := h.controller.runner.Submit(fr)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	w.Header().Set("Location", "/api/forecast/jobs/"+snap.ID.String())
	h.formatter.WriteStatus(w, req, http.StatusAccepted, transformJob(snap, -1), nil)
}

// ListForecastJobs returns every remembered job without outcomes
func (h *Handlers) ListForecastJobs(w http.ResponseWriter, req *http.Request) {
	snaps := h.controller.runner.List()
	out := make([]JobResponse, len(snaps))
	for i, s := range snaps {
		out[i] = transformJob(s, -1)
	}
	h.respond(w, req, out, nil)
}

// GetForecastJob returns one job; ?tail=N trims its in-sample points
func (h *Handlers) GetForecastJob(w http.ResponseWriter, req *http.Request) {
	id, ok := h.jobID(w, req)
	if !ok {
		return
	}
	tail, err := queryTail(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	snap, err := h.controller.runner.Get(id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.respond(w, req, transformJob(snap, tail), nil)
}

// CancelForecastJob cancels a queued or running job
func (h *Handlers) CancelForecastJob(w http.ResponseWriter, req *http.Request) {
	id, ok := h.jobID(w, req)
	if !ok {
		return
	}
	snap, err := h.controller.runner.Cancel(id)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.respond(w, req, transformJob(snap, 0), nil)
}

// GetPretrainedForecast forecasts from the model loaded at startup
func (h *Handlers) GetPretrainedForecast(w http.ResponseWriter, req *http.Request) {
	horizon := 0
	if s := req.URL.Query().Get("horizon"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, req, badRequestf("invalid horizon %q", s))
			return
		}
		horizon = v
	}
	tail, err := queryTail(req)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	out, err := h.controller.configurator.Pretrained(req.Context(), h.controller.pretrained, horizon)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	h.respond(w, req, transformOutcome(out, tail), nil)
}

// filtered applies the start/end query to the series, writing 400 for an
// unparseable or inverted range
func (h *Handlers) filtered(w http.ResponseWriter, req *http.Request) (tide.Series, bool) {
	start, end, err := h.queryRange(req)
	if err != nil {
		h.writeError(w, req, err)
		return tide.Series{}, false
	}
	// a reversed range is a valid query that selects nothing
	return h.controller.series.Filter(start, end), true
}

func (h *Handlers) decodeForecast(w http.ResponseWriter, req *http.Request) (ForecastRequest, forecast.Request, bool) {
	var body ForecastRequest
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		h.writeError(w, req, badRequestf("invalid request body: %v", err))
		return body, forecast.Request{}, false
	}
	if err := h.controller.validate.Struct(body); err != nil {
		h.writeError(w, req, err)
		return body, forecast.Request{}, false
	}
	fr, err := h.toRequest(body)
	if err != nil {
		h.writeError(w, req, err)
		return body, forecast.Request{}, false
	}
	return body, fr, true
}

func (h *Handlers) jobID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(req)["id"])
	if err != nil {
		h.writeError(w, req, badRequestf("invalid job id"))
		return uuid.UUID{}, false
	}
	return id, true
}

func tailOf(body ForecastRequest) int {
	if body.Tail == nil {
		return -1
	}
	return *body.Tail
}

func (h *Handlers) respond(w http.ResponseWriter, req *http.Request, data any, headers map[string]string) {
	if err := h.formatter.WriteResponse(w, req, data, headers); err != nil {
		h.controller.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

// writeError maps domain errors onto HTTP status codes
func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorf("error serving %s: %v", req.URL.Path, err)
	}
	h.formatter.WriteError(w, req, status, err.Error())
}

func statusFor(err error) int {
	var br *badRequest
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &br), errors.As(err, &verrs),
		errors.Is(err, forecast.ErrInvalidRange),
		errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrUnknownSeasonality),
		errors.Is(err, forecast.ErrUnknownMode):
		return http.StatusBadRequest
	case errors.Is(err, forecast.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, forecast.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, forecast.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
