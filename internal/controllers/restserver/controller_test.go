package restserver

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/remotetide/internal/decompose"
	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"github.com/chrissnell/remotetide/pkg/config"
	"github.com/chrissnell/remotetide/pkg/responseformat"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// acquaGranda is five days of hourly levels around 12 November 2019 plus a
// lone reading on 1 December
func acquaGranda() tide.Series {
	start := time.Date(2019, 11, 10, 0, 0, 0, 0, time.UTC)
	var readings []tide.Reading
	for h := 0; h < 5*24; h++ {
		level := 60 + 40*math.Sin(2*math.Pi*float64(h)/12.42)
		if h == 2*24+22 {
			level = 187
		}
		readings = append(readings, tide.Reading{Time: start.Add(time.Duration(h) * time.Hour), Level: level})
	}
	readings = append(readings, tide.Reading{Time: time.Date(2019, 12, 1, 9, 0, 0, 0, time.UTC), Level: 70})
	return tide.NewSeries(readings)
}

type testServer struct {
	handler http.Handler
	runner  *forecast.Runner
}

func newTestServer(t *testing.T, rc config.RESTServerData) testServer {
	t.Helper()
	logger := zap.NewNop().Sugar()
	series := acquaGranda()
	configurator := forecast.NewConfigurator(decompose.New(decompose.DefaultOptions(), logger),
		forecast.Limits{DefaultHorizon: 24, MaxHorizon: 48}, logger)
	runner := forecast.NewRunner(configurator, series, forecast.RunnerOptions{Workers: 1, QueueSize: 4}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	ctrl, err := NewController(ctx, &wg, rc, Dependencies{
		Series:       series,
		Configurator: configurator,
		Runner:       runner,
	}, logger)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return testServer{handler: ctrl.Handler(), runner: runner}
}

func (s testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestRangeAndHealth(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	rec := s.do(t, http.MethodGet, "/api/range", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	r := decode[RangeResponse](t, rec)
	if r.Start.String() != "2019-11-10" || r.End.String() != "2019-12-01" || r.Readings != 121 {
		t.Errorf("range = %+v", r)
	}

	rec = s.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec = s.do(t, http.MethodGet, "/api/range?format=msgpack", nil)
	var packed map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &packed); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if packed["start"] != "2019-11-10" {
		t.Errorf("msgpack range = %v", packed)
	}
}

func TestDailyAnnotatesMoon(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	rec := s.do(t, http.MethodGet, "/api/daily?start=2019-11-12&end=2019-11-12", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	days := decode[[]DailyResponse](t, rec)
	if len(days) != 1 {
		t.Fatalf("got %d days", len(days))
	}
	d := days[0]
	if d.MaxLevel != 187 || d.Category != tide.Exceptional || !d.Exceptional || d.Sustained {
		t.Errorf("day = %+v", d)
	}
	if !d.Moon.SpringTide || d.Moon.Illumination < 0.95 {
		t.Errorf("12 Nov 2019 was a full moon: %+v", d.Moon)
	}

	rec = s.do(t, http.MethodGet, "/api/daily?start=2019-11-12&end=2019-11-12&format=msgpack", nil)
	var packed []map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &packed); err != nil {
		t.Fatalf("msgpack: %v", err)
	}
	if len(packed) != 1 || packed[0]["date"] != "2019-11-12" || packed[0]["category"] != "exceptional" {
		t.Errorf("msgpack daily = %v", packed)
	}
}

func TestAggregateEndpoints(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	rec := s.do(t, http.MethodGet, "/api/summary?by=year&basis=daily&start=2019-11-10&end=2019-11-14", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d: %s", rec.Code, rec.Body)
	}
	sum := decode[SummaryResponse](t, rec)
	if len(sum.Periods) != 1 {
		t.Fatalf("periods = %+v", sum.Periods)
	}
	c := sum.Periods[0].Counts
	if c.Exceptional != 1 || c.Sustained != 4 || c.VerySustained != 0 {
		t.Errorf("daily counts = %+v", c)
	}

	rec = s.do(t, http.MethodGet, "/api/totals?start=2019-11-10&end=2019-11-14", nil)
	totals := decode[tide.Counts](t, rec)
	if totals != c {
		t.Errorf("totals = %+v, want %+v", totals, c)
	}

	rec = s.do(t, http.MethodGet, "/api/yearly-mean?threshold=150", nil)
	ym := decode[YearlyMeanResponse](t, rec)
	if len(ym.Years) != 1 || ym.Years[0].Mean != 187 || ym.Years[0].Days != 1 {
		t.Errorf("yearly mean = %+v", ym)
	}

	rec = s.do(t, http.MethodGet, "/api/readings?start=2019-12-01", nil)
	readings := decode[[]ReadingResponse](t, rec)
	if len(readings) != 1 || readings[0].Level != 70 {
		t.Errorf("readings = %+v", readings)
	}
}

func TestReversedRangeIsEmpty(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})
	const q = "?start=2019-11-14&end=2019-11-10"

	for _, path := range []string{"/api/readings", "/api/daily"} {
		rec := s.do(t, http.MethodGet, path+q, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d: %s", path, rec.Code, rec.Body)
			continue
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("%s: body = %s, want []", path, body)
		}
	}

	rec := s.do(t, http.MethodGet, "/api/summary"+q, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d", rec.Code)
	}
	if sum := decode[SummaryResponse](t, rec); len(sum.Periods) != 0 {
		t.Errorf("summary periods = %+v", sum.Periods)
	}

	rec = s.do(t, http.MethodGet, "/api/totals"+q, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("totals status = %d", rec.Code)
	}
	if c := decode[tide.Counts](t, rec); c != (tide.Counts{}) {
		t.Errorf("totals = %+v", c)
	}

	rec = s.do(t, http.MethodGet, "/api/yearly-mean"+q, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("yearly mean status = %d", rec.Code)
	}
	if ym := decode[YearlyMeanResponse](t, rec); len(ym.Years) != 0 {
		t.Errorf("yearly mean = %+v", ym)
	}
}

func TestBadQueries(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	for _, target := range []string{
		"/api/summary?by=week",
		"/api/summary?basis=hourly",
		"/api/daily?start=12/11/2019",
		"/api/yearly-mean?threshold=high",
	} {
		rec := s.do(t, http.MethodGet, target, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
			continue
		}
		body := decode[responseformat.ErrorBody](t, rec)
		if body.Message == "" {
			t.Errorf("%s: empty error message", target)
		}
	}
}

func TestPostForecast(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	tail := 0
	rec := s.do(t, http.MethodPost, "/api/forecast", ForecastRequest{
		Start:       "2019-11-10",
		End:         "2019-11-14",
		Seasonality: "lunar",
		Horizon:     12,
		Tail:        &tail,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[ForecastResponse](t, rec)
	if resp.Config.Mode != forecast.ModeAdditive || resp.Config.Custom == nil {
		t.Errorf("config = %+v", resp.Config)
	}
	if resp.TrainingRows != 120 {
		t.Errorf("training rows = %d", resp.TrainingRows)
	}
	if len(resp.Forecast.Points) != 12 || resp.Forecast.HistoryLen != 0 {
		t.Errorf("got %d points with %d in-sample", len(resp.Forecast.Points), resp.Forecast.HistoryLen)
	}
	if resp.Metrics.RMSE <= 0 {
		t.Errorf("metrics = %+v", resp.Metrics)
	}
}

func TestPostForecastErrors(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	tests := []struct {
		name string
		body any
		want int
	}{
		{"horizon too long", ForecastRequest{Horizon: 100}, http.StatusBadRequest},
		{"negative horizon", ForecastRequest{Horizon: -1}, http.StatusBadRequest},
		{"bad date", ForecastRequest{Start: "2019-13-40"}, http.StatusBadRequest},
		{"unknown seasonality", ForecastRequest{Seasonality: "tidal"}, http.StatusBadRequest},
		{"inverted range", ForecastRequest{Start: "2019-11-14", End: "2019-11-10"}, http.StatusBadRequest},
		{"empty range", ForecastRequest{Start: "2020-01-01", End: "2020-01-31"}, http.StatusBadRequest},
		{"single reading", ForecastRequest{Start: "2019-12-01", End: "2019-12-01"}, http.StatusUnprocessableEntity},
		{"not json", "start=2019-11-10", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/forecast", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestForecastJobs(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})

	rec := s.do(t, http.MethodPost, "/api/forecast/jobs", ForecastRequest{Start: "2019-11-10", End: "2019-11-14", Horizon: 6})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body)
	}
	job := decode[JobResponse](t, rec)
	if rec.Header().Get("Location") != "/api/forecast/jobs/"+job.ID {
		t.Errorf("Location = %q", rec.Header().Get("Location"))
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		rec = s.do(t, http.MethodGet, "/api/forecast/jobs/"+job.ID+"?tail=2", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("get status = %d", rec.Code)
		}
		job = decode[JobResponse](t, rec)
		if job.Status == string(forecast.JobDone) || job.Status == string(forecast.JobFailed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job still %s", job.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if job.Status != string(forecast.JobDone) || job.Outcome == nil {
		t.Fatalf("job = %+v", job)
	}
	if job.Outcome.Forecast.HistoryLen != 2 || len(job.Outcome.Forecast.Points) != 8 {
		t.Errorf("tail not applied: %d points, %d in-sample", len(job.Outcome.Forecast.Points), job.Outcome.Forecast.HistoryLen)
	}

	rec = s.do(t, http.MethodGet, "/api/forecast/jobs", nil)
	if list := decode[[]JobResponse](t, rec); len(list) != 1 || list[0].Outcome != nil {
		t.Errorf("list = %+v", list)
	}

	rec = s.do(t, http.MethodGet, "/api/forecast/jobs/00000000-0000-0000-0000-000000000000", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", rec.Code)
	}
	rec = s.do(t, http.MethodDelete, "/api/forecast/jobs/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestFitRateLimit(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{FitRatePerMinute: 1, FitBurst: 1})

	body := ForecastRequest{Start: "2019-11-10", End: "2019-11-14", Horizon: 1}
	if rec := s.do(t, http.MethodPost, "/api/forecast", body); rec.Code != http.StatusOK {
		t.Fatalf("first fit status = %d: %s", rec.Code, rec.Body)
	}
	rec := s.do(t, http.MethodPost, "/api/forecast/jobs", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second fit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// reads are never limited
	if rec := s.do(t, http.MethodGet, "/api/range", nil); rec.Code != http.StatusOK {
		t.Errorf("range status = %d", rec.Code)
	}
}

func TestPretrainedRouteOnlyWhenConfigured(t *testing.T) {
	s := newTestServer(t, config.RESTServerData{})
	rec := s.do(t, http.MethodGet, "/api/forecast/pretrained", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 without a pretrained model", rec.Code)
	}
}

func TestPretrainedForecast(t *testing.T) {
	logger := zap.NewNop().Sugar()
	series := acquaGranda().Filter(tide.Date{Year: 2019, Month: 11, Day: 10}, tide.Date{Year: 2019, Month: 11, Day: 14})
	engine := decompose.New(decompose.DefaultOptions(), logger)
	cfg, err := forecast.NewConfig(forecast.NoSeasonality, "")
	if err != nil {
		t.Fatal(err)
	}
	model, err := engine.Fit(context.Background(), series, cfg)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctrl, err := NewController(ctx, &sync.WaitGroup{}, config.RESTServerData{}, Dependencies{
		Series:       series,
		Configurator: forecast.NewConfigurator(engine, forecast.Limits{}, logger),
		Pretrained:   model,
	}, logger)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/forecast/pretrained?horizon=5&tail=0", nil)
	rec := httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	resp := decode[ForecastResponse](t, rec)
	if len(resp.Forecast.Points) != 5 || resp.Config.Mode != forecast.ModeNone {
		t.Errorf("resp = %d points, config %+v", len(resp.Forecast.Points), resp.Config)
	}

	// no runner wired, so the async routes are absent
	req = httptest.NewRequest(http.MethodGet, "/api/forecast/jobs", nil)
	rec = httptest.NewRecorder()
	ctrl.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("jobs status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{forecast.ErrInvalidRange, http.StatusBadRequest},
		{forecast.ErrInsufficientData, http.StatusUnprocessableEntity},
		{forecast.ErrJobNotFound, http.StatusNotFound},
		{forecast.ErrQueueFull, http.StatusTooManyRequests},
		{context.Canceled, http.StatusServiceUnavailable},
		{badRequestf("nope"), http.StatusBadRequest},
		{decompose.ErrSingular, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
