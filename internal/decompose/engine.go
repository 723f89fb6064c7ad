// Package decompose fits tide levels with an additive or multiplicative
// model of a piecewise-linear trend plus Fourier seasonalities, solved as a
// ridge-penalised least squares problem.
package decompose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/remotetide/internal/forecast"
	"github.com/chrissnell/remotetide/internal/tide"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrSingular is returned when the penalised normal equations cannot be
// factorised
var ErrSingular = errors.New("design matrix is singular")

// how often long loops stop to look at the context
const ctxCheckEvery = 4096

// Options tunes the trend model
type Options struct {
	// Changepoints is the maximum number of potential trend changepoints
	Changepoints int
	// ChangepointRange is the leading fraction of history they are placed in
	ChangepointRange float64
}

// DefaultOptions places 25 changepoints over the first 80% of history
func DefaultOptions() Options {
	return Options{Changepoints: 25, ChangepointRange: 0.8}
}

// Engine implements forecast.Capability and forecast.ModelLoader
type Engine struct {
	opts   Options
	logger *zap.SugaredLogger
}

// New creates an engine. Zero option fields take their defaults.
func New(opts Options, logger *zap.SugaredLogger) *Engine {
	def := DefaultOptions()
	if opts.Changepoints <= 0 {
		opts.Changepoints = def.Changepoints
	}
	if opts.ChangepointRange <= 0 || opts.ChangepointRange > 1 {
		opts.ChangepointRange = def.ChangepointRange
	}
	return &Engine{opts: opts, logger: logger}
}

// Fit trains a model on training. It needs at least two distinct timestamps.
func (e *Engine) Fit(ctx context.Context, training tide.Series, cfg forecast.Config) (forecast.Model, error) {
	if training.DistinctTimes(2) < 2 {
		return nil, forecast.ErrInsufficientData
	}

	readings := training.Readings()
	n := len(readings)
	first, last := readings[0].Time, readings[n-1].Time

	m := &Model{
		Version:     modelVersion,
		Cfg:         cfg,
		Readings:    readings,
		Location:    first.Location().String(),
		Start:       first,
		SpanSeconds: last.Sub(first).Seconds(),
		Seasonal:    seasonalities(cfg),
		history:     training,
	}

	levels := make([]float64, n)
	for i, r := range readings {
		levels[i] = r.Level
	}
	m.YScale = floats.Norm(levels, math.Inf(1))
	if m.YScale == 0 || math.IsNaN(m.YScale) || math.IsInf(m.YScale, 0) {
		m.YScale = 1
	}

	s := make([]float64, n)
	y := make([]float64, n)
	for i, r := range readings {
		s[i] = m.scaleTime(r.Time)
		y[i] = r.Level / m.YScale
	}
	m.Changepoints = changepointLocations(s, e.opts.Changepoints, e.opts.ChangepointRange)

	season, err := e.seasonalMatrix(ctx, m, readings)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// noise estimate from a straight line through the data
	alpha, beta := stat.LinearRegression(s, y, nil, false)
	noise := 0.0
	for i := range y {
		r := y[i] - (alpha + beta*s[i])
		noise += r * r
	}
	noise /= float64(n)
	if noise < minNoiseVar {
		noise = minNoiseVar
	}

	if cfg.Multiplicative() {
		err = e.fitMultiplicative(ctx, m, s, y, season, noise)
	} else {
		err = e.fitAdditive(ctx, m, s, y, season, noise)
	}
	if err != nil {
		return nil, err
	}

	m.Sigma = e.residualStd(m, readings, y)
	e.logger.Debugf("fit %d readings: %d changepoints, %d seasonal terms, sigma %.4f",
		n, len(m.Changepoints), len(m.Seasonal), m.Sigma*m.YScale)
	return m, nil
}

// seasonalMatrix builds the n x q block of Fourier features
func (e *Engine) seasonalMatrix(ctx context.Context, m *Model, readings []tide.Reading) (*mat.Dense, error) {
	q := 0
	for _, sz := range m.Seasonal {
		q += sz.width()
	}
	if q == 0 {
		return nil, nil
	}

	n := len(readings)
	data := make([]float64, n*q)
	for i, r := range readings {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		days := epochDays(r.Time)
		off := i * q
		for _, sz := range m.Seasonal {
			fourier(days, sz.PeriodDays, sz.Order, data[off:off+sz.width()])
			off += sz.width()
		}
	}
	return mat.NewDense(n, q, data), nil
}

func (e *Engine) trendMatrix(s []float64, cps []float64) *mat.Dense {
	p := 2 + len(cps)
	data := make([]float64, len(s)*p)
	for i, v := range s {
		trendRow(v, cps, data[i*p:(i+1)*p])
	}
	return mat.NewDense(len(s), p, data)
}

// trendPenalty returns ridge weights for [m, k, deltas...]
func (e *Engine) trendPenalty(noise, tau float64, ncp int) []float64 {
	pen := make([]float64, 2+ncp)
	pen[0] = noise / (trendPriorStd * trendPriorStd)
	pen[1] = pen[0]
	if tau <= 0 {
		tau = forecast.DefaultChangepointPriorScale
	}
	for j := 0; j < ncp; j++ {
		pen[2+j] = noise / (tau * tau)
	}
	return pen
}

func (e *Engine) fitAdditive(ctx context.Context, m *Model, s, y []float64, season *mat.Dense, noise float64) error {
	trend := e.trendMatrix(s, m.Changepoints)
	pen := e.trendPenalty(noise, m.Cfg.ChangepointPriorScale, len(m.Changepoints))

	X := mat.Matrix(trend)
	if season != nil {
		_, q := season.Dims()
		n, pt := trend.Dims()
		joint := mat.NewDense(n, pt+q, nil)
		joint.Augment(trend, season)
		X = joint
		for j := 0; j < q; j++ {
			pen = append(pen, noise/(seasonPriorStd*seasonPriorStd))
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	theta, err := ridgeSolve(X, mat.NewVecDense(len(y), y), pen)
	if err != nil {
		return err
	}
	m.setTrend(theta.RawVector().Data[:2+len(m.Changepoints)])
	m.setSeasonal(theta.RawVector().Data[2+len(m.Changepoints):])
	return nil
}

// fitMultiplicative fits the trend first, then regresses y/trend - 1 on the
// seasonal features
func (e *Engine) fitMultiplicative(ctx context.Context, m *Model, s, y []float64, season *mat.Dense, noise float64) error {
	trend := e.trendMatrix(s, m.Changepoints)
	pen := e.trendPenalty(noise, m.Cfg.ChangepointPriorScale, len(m.Changepoints))
	theta, err := ridgeSolve(trend, mat.NewVecDense(len(y), y), pen)
	if err != nil {
		return err
	}
	m.setTrend(theta.RawVector().Data)

	if season == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, q := season.Dims()
	var rows []int
	var ratio []float64
	for i := range y {
		g := m.trend(s[i])
		if math.Abs(g) < minTrendForMult {
			continue
		}
		rows = append(rows, i)
		ratio = append(ratio, y[i]/g-1)
	}
	if len(rows) == 0 {
		m.setSeasonal(make([]float64, q))
		return nil
	}

	sub := mat.NewDense(len(rows), q, nil)
	for k, i := range rows {
		sub.SetRow(k, season.RawRowView(i))
	}
	rvar := stat.Variance(ratio, nil)
	if math.IsNaN(rvar) || rvar < minNoiseVar {
		rvar = minNoiseVar
	}
	spen := make([]float64, q)
	for j := range spen {
		spen[j] = rvar / (seasonPriorStd * seasonPriorStd)
	}

	beta, err := ridgeSolve(sub, mat.NewVecDense(len(ratio), ratio), spen)
	if err != nil {
		return err
	}
	m.setSeasonal(beta.RawVector().Data)
	return nil
}

func (m *Model) setTrend(theta []float64) {
	m.M = theta[0]
	m.K = theta[1]
	m.Deltas = append([]float64(nil), theta[2:]...)
}

func (m *Model) setSeasonal(beta []float64) {
	off := 0
	for i := range m.Seasonal {
		w := m.Seasonal[i].width()
		m.Seasonal[i].Beta = append([]float64(nil), beta[off:off+w]...)
		off += w
	}
}

// residualStd is the in-sample RMS error in scaled units
func (e *Engine) residualStd(m *Model, readings []tide.Reading, y []float64) float64 {
	scratch := make([]float64, m.maxWidth())
	sum := 0.0
	for i, r := range readings {
		sum += math.Pow(y[i]-m.predictScaled(r.Time, scratch), 2)
	}
	return math.Sqrt(sum / float64(len(readings)))
}

// ridgeSolve minimises |y - X theta|^2 + sum(pen_j * theta_j^2) through the
// normal equations
func ridgeSolve(X mat.Matrix, y *mat.VecDense, pen []float64) (*mat.VecDense, error) {
	_, p := X.Dims()
	if len(pen) != p {
		return nil, fmt.Errorf("penalty has %d entries for %d columns", len(pen), p)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	for j := 0; j < p; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+pen[j])
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, ErrSingular
	}
	var theta mat.VecDense
	if err := chol.SolveVecTo(&theta, &xty); err != nil {
		return nil, fmt.Errorf("solving normal equations: %w", err)
	}
	return &theta, nil
}

// MakeFutureGrid returns the training timestamps followed by horizon steps
// of freq after the last one
func (e *Engine) MakeFutureGrid(fm forecast.Model, horizon int, freq time.Duration) []time.Time {
	h := fm.History()
	grid := make([]time.Time, 0, h.Len()+horizon)
	for i := 0; i < h.Len(); i++ {
		grid = append(grid, h.At(i).Time)
	}
	last, ok := h.Last()
	if !ok {
		return grid
	}
	for i := 1; i <= horizon; i++ {
		grid = append(grid, last.Time.Add(time.Duration(i)*freq))
	}
	return grid
}

// Predict evaluates the model over grid. The interval widens with distance
// past the end of training.
func (e *Engine) Predict(ctx context.Context, fm forecast.Model, grid []time.Time) (forecast.Result, error) {
	m, ok := fm.(*Model)
	if !ok {
		return forecast.Result{}, fmt.Errorf("decompose: cannot predict with model of type %T", fm)
	}

	width := m.Cfg.IntervalWidth
	if width <= 0 || width >= 1 {
		width = forecast.DefaultIntervalWidth
	}
	z := distuv.UnitNormal.Quantile(0.5 + width/2)

	scratch := make([]float64, m.maxWidth())
	points := make([]forecast.Point, len(grid))
	for i, t := range grid {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return forecast.Result{}, err
			}
		}

		s := m.scaleTime(t)
		g := m.trend(s)
		parts, total := m.seasonal(t, scratch)

		yhat := g + total
		if m.Cfg.Multiplicative() {
			yhat = g * (1 + total)
		}
		spread := z * m.Sigma * math.Sqrt(1+math.Max(0, s-1))

		p := forecast.Point{
			Time:      t,
			Predicted: yhat * m.YScale,
			Lower:     (yhat - spread) * m.YScale,
			Upper:     (yhat + spread) * m.YScale,
			Trend:     g * m.YScale,
		}
		if len(parts) > 0 {
			p.Components = make(map[string]float64, len(parts))
			for j, sz := range m.Seasonal {
				v := parts[j]
				if m.Cfg.Multiplicative() {
					v *= g
				}
				p.Components[sz.Name] = v * m.YScale
			}
		}
		points[i] = p
	}
	return forecast.Result{Points: points}, nil
}

func (m *Model) predictScaled(t time.Time, scratch []float64) float64 {
	g := m.trend(m.scaleTime(t))
	_, total := m.seasonal(t, scratch)
	if m.Cfg.Multiplicative() {
		return g * (1 + total)
	}
	return g + total
}

func (m *Model) maxWidth() int {
	w := 0
	for _, s := range m.Seasonal {
		if s.width() > w {
			w = s.width()
		}
	}
	return w
}
