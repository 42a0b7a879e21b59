package analytics

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// MacKinnon (1994) response surface for the constant-only ADF regression
// with a single series. Coefficients are in ascending powers of tau.
var (
	tauMaxC    = 2.74
	tauMinC    = -18.83
	tauStarC   = -1.61
	tauSmallPC = []float64{2.1659, 1.4412, 0.038269}
	tauLargePC = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// MacKinnonPValue returns the approximate asymptotic p-value of an ADF
// statistic for the regression with a constant.
func MacKinnonPValue(tau float64) float64 {
	switch {
	case tau > tauMaxC:
		return 1
	case tau < tauMinC:
		return 0
	}
	coef := tauLargePC
	if tau <= tauStarC {
		coef = tauSmallPC
	}
	return distuv.UnitNormal.CDF(polyval(coef, tau))
}

// polyval evaluates c[0] + c[1]x + c[2]x^2 + ... by Horner's rule.
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
