package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/HatiCode/ecovision/pkg/usage"
)

// ARIMAModel implements Model using AutoRegressive Integrated Moving Average
// on the daily series.
//
// ARIMA(p,d,q) where:
//   - p: AutoRegressive order (how many past values to use)
//   - d: Differencing order (trend removal: 0=none, 1=linear, 2=quadratic)
//   - q: Moving Average order (how many past errors to use)
//
// With a non-zero seasonal period s the series is first differenced at lag s,
// which removes a repeating weekly (s=7) profile before the ARIMA fit.
//
// Repeated dates are averaged into one observation. Gaps between dates are
// ignored: consecutive distinct dates are treated as consecutive steps.
type ARIMAModel struct {
	p, d, q int
	s       int
	width   float64

	trained     bool
	dates       []time.Time
	values      []float64 // daily means
	fitted      []float64 // one-step-ahead in-sample predictions
	arCoeffs    []float64
	maCoeffs    []float64
	mean        float64 // mean of the stationary series
	centered    []float64
	innovations []float64
	residualSD  float64
}

// NewARIMAModel creates an ARIMA model with the given orders.
//
// Zero p, d or q selects the default order of 1. d must be in [0, 2] and
// season must be 0 (no seasonal differencing) or at least 2.
func NewARIMAModel(p, d, q, season int, width float64) (*ARIMAModel, error) {
	if d < 0 || d > 2 {
		return nil, fmt.Errorf("d must be in range [0, 2], got %d", d)
	}
	if p < 0 || q < 0 {
		return nil, fmt.Errorf("p and q must be >= 0, got p=%d q=%d", p, q)
	}
	if season < 0 || season == 1 {
		return nil, fmt.Errorf("seasonal period must be 0 or >= 2, got %d", season)
	}

	if p == 0 {
		p = 1
	}
	if d == 0 {
		d = 1
	}
	if q == 0 {
		q = 1
	}

	return &ARIMAModel{p: p, d: d, q: q, s: season, width: width}, nil
}

// Name returns the model name with its orders.
func (m *ARIMAModel) Name() string {
	if m.s > 0 {
		return fmt.Sprintf("sarima(%d,%d,%d)(0,1,0,%d)", m.p, m.d, m.q, m.s)
	}
	return fmt.Sprintf("arima(%d,%d,%d)", m.p, m.d, m.q)
}

// minPoints is the shortest daily series Train accepts.
func (m *ARIMAModel) minPoints() int {
	return max(max(m.p+m.d, m.q+m.d), 10) + m.s
}

// Train fits the model to the daily means of history.
//
// The training process:
//  1. Applies seasonal differencing (lag s) when configured
//  2. Applies differencing (d times) to achieve stationarity
//  3. Fits AR coefficients using Yule-Walker equations
//  4. Fits MA coefficients from the AR residual autocorrelation
//  5. Computes one-step-ahead in-sample predictions and their errors
//
// Returns an error if ctx is cancelled or history is too short.
func (m *ARIMAModel) Train(ctx context.Context, history usage.Series) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	dates, values := dailyMeans(history)
	if len(values) < m.minPoints() {
		return fmt.Errorf("need at least %d distinct dates for %s, got %d",
			m.minPoints(), m.Name(), len(values))
	}

	stationary := difference(seasonalDifference(values, m.s), m.d)
	mean := computeMean(stationary)

	centered := make([]float64, len(stationary))
	for i, v := range stationary {
		centered[i] = v - mean
	}

	arCoeffs, err := fitAR(centered, m.p)
	if err != nil {
		return fmt.Errorf("failed to fit AR coefficients: %w", err)
	}

	maCoeffs, err := fitMA(computeResiduals(centered, arCoeffs, m.p), m.q)
	if err != nil {
		return fmt.Errorf("failed to fit MA coefficients: %w", err)
	}

	// One-step-ahead predictions of the centered series; the innovation at
	// each step feeds the MA terms of the following steps.
	innovations := make([]float64, len(centered))
	for t := m.p; t < len(centered); t++ {
		pred := armaStep(centered[:t], innovations[:t], arCoeffs, maCoeffs)
		innovations[t] = centered[t] - pred
	}

	// Each differenced value has unit weight on the newest original value,
	// so the in-sample error carries over unchanged.
	lead := len(values) - len(centered)
	fitted := make([]float64, len(values))
	copy(fitted, values)
	for t := m.p; t < len(centered); t++ {
		fitted[lead+t] = values[lead+t] - innovations[t]
	}

	m.trained = true
	m.dates = dates
	m.values = values
	m.fitted = fitted
	m.arCoeffs = arCoeffs
	m.maCoeffs = maCoeffs
	m.mean = mean
	m.centered = centered
	m.innovations = innovations
	m.residualSD = residualStdDev(innovations[m.p:], m.p+m.q)

	return nil
}

// Predict returns the in-sample fit and a recursive projection of periods
// days, integrating the differenced forecast back to the original scale.
func (m *ARIMAModel) Predict(ctx context.Context, periods int) (Forecast, error) {
	if ctx.Err() != nil {
		return Forecast{}, ctx.Err()
	}
	if !m.trained {
		return Forecast{}, errors.New("model not trained, call Train() first")
	}
	if periods <= 0 {
		return Forecast{}, fmt.Errorf("periods must be positive, got %d", periods)
	}

	z := zScore(m.width)

	fitted := make([]Point, len(m.dates))
	for i, d := range m.dates {
		fitted[i] = band(Point{Date: d, Value: m.fitted[i]}, z*m.residualSD)
	}

	centered := append([]float64(nil), m.centered...)
	innovations := append([]float64(nil), m.innovations...)

	// levels[0] is the seasonally differenced series, levels[k] its k-th difference.
	base := seasonalDifference(m.values, m.s)
	levels := make([][]float64, m.d+1)
	levels[0] = base
	for k := 1; k <= m.d; k++ {
		levels[k] = difference(levels[k-1], 1)
	}
	history := append([]float64(nil), m.values...)

	future := make([]Point, periods)
	for i, d := range futureDates(m.dates[len(m.dates)-1], periods) {
		next := armaStep(centered, innovations, m.arCoeffs, m.maCoeffs)
		centered = append(centered, next)
		innovations = append(innovations, 0)

		value := next + m.mean
		levels[m.d] = append(levels[m.d], value)
		for k := m.d - 1; k >= 0; k-- {
			value = levels[k][len(levels[k])-1] + value
			levels[k] = append(levels[k], value)
		}
		if m.s > 0 {
			value += history[len(history)-m.s]
		}
		history = append(history, value)

		future[i] = band(Point{Date: d, Value: value}, z*m.residualSD*horizonFactor(i+1))
	}

	return Forecast{Model: m.Name(), Fitted: fitted, Future: future}, nil
}

// armaStep predicts the next centered value from the AR history and past
// innovations.
func armaStep(centered, innovations, arCoeffs, maCoeffs []float64) float64 {
	pred := 0.0
	for i, phi := range arCoeffs {
		if k := len(centered) - 1 - i; k >= 0 {
			pred += phi * centered[k]
		}
	}
	for j, theta := range maCoeffs {
		if k := len(innovations) - 1 - j; k >= 0 {
			pred += theta * innovations[k]
		}
	}
	return pred
}

// seasonalDifference returns y[t] - y[t-s]; s == 0 returns a copy.
func seasonalDifference(series []float64, s int) []float64 {
	if s == 0 {
		return append([]float64(nil), series...)
	}
	if len(series) <= s {
		return []float64{}
	}
	result := make([]float64, len(series)-s)
	for i := s; i < len(series); i++ {
		result[i-s] = series[i] - series[i-s]
	}
	return result
}

// difference applies d-order differencing to make series stationary
func difference(series []float64, d int) []float64 {
	if d == 0 || len(series) == 0 {
		result := make([]float64, len(series))
		copy(result, series)
		return result
	}

	result := make([]float64, len(series)-1)
	for i := 0; i < len(series)-1; i++ {
		result[i] = series[i+1] - series[i]
	}

	if d > 1 {
		return difference(result, d-1)
	}

	return result
}

// computeMean calculates the arithmetic mean of a series
func computeMean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// computeVariance calculates the variance of a series
func computeVariance(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}

	mean := computeMean(series)
	var sumSq float64
	for _, v := range series {
		diff := v - mean
		sumSq += diff * diff
	}
	return sumSq / float64(len(series))
}

// fitAR estimates AR coefficients using Yule-Walker equations with Levinson-Durbin
func fitAR(centered []float64, p int) ([]float64, error) {
	if p == 0 {
		return []float64{}, nil
	}

	variance := computeVariance(centered)
	if variance < 1e-10 {
		return make([]float64, p), nil
	}

	acf := make([]float64, p+1)
	for k := 0; k <= p; k++ {
		acf[k] = autocorr(centered, k)
	}

	coeffs, err := levinsonDurbin(acf, p)
	if err != nil {
		coeffs = make([]float64, p)
		if p > 0 {
			coeffs[0] = 0.5 // Simple default
		}
	}

	return coeffs, nil
}

// autocorr computes autocorrelation at given lag
func autocorr(series []float64, lag int) float64 {
	if lag < 0 || lag >= len(series) {
		return 0
	}

	n := len(series)
	mean := computeMean(series)

	var c0, ck float64
	for i := range n {
		c0 += (series[i] - mean) * (series[i] - mean)
	}

	for i := 0; i < n-lag; i++ {
		ck += (series[i] - mean) * (series[i+lag] - mean)
	}

	if c0 == 0 {
		return 0
	}

	return ck / c0
}

// levinsonDurbin solves Yule-Walker equations efficiently
func levinsonDurbin(acf []float64, p int) ([]float64, error) {
	if p == 0 {
		return []float64{}, nil
	}

	phi := make([][]float64, p+1)
	for i := range phi {
		phi[i] = make([]float64, p+1)
	}

	var v float64 = acf[0]

	for k := 1; k <= p; k++ {
		var num float64 = acf[k]
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
		}

		if v == 0 {
			return nil, errors.New("numerical instability in Levinson-Durbin")
		}

		phi[k][k] = num / v

		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}

		v = v * (1 - phi[k][k]*phi[k][k])

		if v < 0 {
			return nil, errors.New("negative variance in Levinson-Durbin")
		}
	}

	coeffs := make([]float64, p)
	for i := range p {
		coeffs[i] = phi[p][i+1]
	}

	return coeffs, nil
}

// computeResiduals calculates prediction errors for MA fitting
func computeResiduals(centered []float64, arCoeffs []float64, p int) []float64 {
	if len(centered) <= p {
		return []float64{}
	}

	residuals := make([]float64, len(centered)-p)

	for t := p; t < len(centered); t++ {
		var arPred float64
		for i := 0; i < p && i < len(arCoeffs); i++ {
			arPred += arCoeffs[i] * centered[t-1-i]
		}

		residuals[t-p] = centered[t] - arPred
	}

	return residuals
}

// fitMA estimates MA coefficients using innovations algorithm
func fitMA(residuals []float64, q int) ([]float64, error) {
	if q == 0 || len(residuals) == 0 {
		return []float64{}, nil
	}

	// Simplified MA fitting: use autocorrelations of residuals
	// This is a basic approach; full innovations algorithm is more complex
	// TODO: work way off basic approach

	coeffs := make([]float64, q)

	for i := 0; i < q && i < len(residuals); i++ {
		coeffs[i] = autocorr(residuals, i+1)
	}

	for i := range coeffs {
		if math.Abs(coeffs[i]) > 1 {
			coeffs[i] = coeffs[i] / math.Abs(coeffs[i]) * 0.9
		}
	}

	return coeffs, nil
}
