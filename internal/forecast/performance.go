package forecast

import (
	"math"

	"github.com/chrissnell/remotetide/internal/tide"
	"gonum.org/v1/gonum/stat"
)

// Pair is an observed level and the model's in-sample prediction for it
type Pair struct {
	Observed  float64
	Predicted float64
}

// Metrics summarizes in-sample error. All values are non-negative and
// RMSE is always the square root of MSE.
type Metrics struct {
	MAE  float64 `json:"mae"`
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
}

// Evaluate computes MAE, MSE and RMSE over pairs
func Evaluate(pairs []Pair) (Metrics, error) {
	if len(pairs) == 0 {
		return Metrics{}, ErrEmptyHistory
	}

	abs := make([]float64, len(pairs))
	sq := make([]float64, len(pairs))
	for i, p := range pairs {
		d := p.Observed - p.Predicted
		abs[i] = math.Abs(d)
		sq[i] = d * d
	}

	mse := stat.Mean(sq, nil)
	return Metrics{
		MAE:  stat.Mean(abs, nil),
		MSE:  mse,
		RMSE: math.Sqrt(mse),
	}, nil
}

// AlignHistory pairs each training reading with the prediction at the same
// position in r
func AlignHistory(history tide.Series, r Result) []Pair {
	n := history.Len()
	if len(r.Points) < n {
		n = len(r.Points)
	}
	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{Observed: history.At(i).Level, Predicted: r.Points[i].Predicted}
	}
	return pairs
}
