package analytics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var errSingular = errors.New("singular design matrix")

// olsFit is an ordinary least squares fit with the statistics the ADF
// procedure needs: coefficients, residual sum of squares and (X'X)^-1.
type olsFit struct {
	params []float64
	ssr    float64
	nobs   int
	k      int
	xtxInv *mat.Dense
}

func fitOLS(y []float64, x *mat.Dense) (*olsFit, error) {
	if x == nil {
		return nil, fmt.Errorf("ols: empty design: %w", ErrInsufficientData)
	}
	n, k := x.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("ols: %d rows but %d observations", n, len(y))
	}
	if n <= k {
		return nil, fmt.Errorf("ols: %d observations for %d regressors: %w", n, k, ErrInsufficientData)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	var inv mat.Dense
	// Inverse reports a mat.Condition once the condition number passes
	// mat.ConditionTolerance; such estimates are not usable.
	if err := inv.Inverse(&xtx); err != nil {
		return nil, fmt.Errorf("ols: %w: %v", errSingular, err)
	}

	yv := mat.NewVecDense(n, y)
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}

	params := make([]float64, k)
	for i := range params {
		params[i] = beta.AtVec(i)
	}
	return &olsFit{params: params, ssr: ssr, nobs: n, k: k, xtxInv: &inv}, nil
}

// llf is the Gaussian log-likelihood at the ML variance estimate ssr/n.
func (f *olsFit) llf() float64 {
	n := float64(f.nobs)
	return -n/2*math.Log(2*math.Pi) - n/2*math.Log(f.ssr/n) - n/2
}

// aic counts every column, the constant included, as a parameter.
func (f *olsFit) aic() float64 {
	return -2*f.llf() + 2*float64(f.k)
}

// tvalue is the t statistic of coefficient i using the unbiased residual variance.
func (f *olsFit) tvalue(i int) float64 {
	sigma2 := f.ssr / float64(f.nobs-f.k)
	se := math.Sqrt(sigma2 * f.xtxInv.At(i, i))
	return f.params[i] / se
}
