package indicators

import "math"

// Pure indicator math over numeric series. All series are ordered
// oldest-first. Functions return 0 when there is not enough data; callers
// that must distinguish use the ok-returning variants.

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of the last value, seeded with
// an SMA over the first period values.
func EMA(values []float64, period int) float64 {
	s := EMASeries(values, period)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// EMASeries returns the EMA at each index from period-1 onward.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	ema := SMA(values[:period], period)
	out = append(out, ema)
	for _, v := range values[period:] {
		ema = v*k + ema*(1-k)
		out = append(out, ema)
	}
	return out
}

// RSI computes Wilder's relative strength index over the last period moves.
func RSI(values []float64, period int) float64 {
	if period <= 0 || len(values) < period+1 {
		return 0
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	for i := period + 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// TrueRanges returns the true range series; element i covers bar i (the
// first bar uses high-low only).
func TrueRanges(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n == 0 || len(highs) != n || len(lows) != n {
		return nil
	}
	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATR is Wilder-smoothed average true range.
func ATR(highs, lows, closes []float64, period int) float64 {
	tr := TrueRanges(highs, lows, closes)
	if period <= 0 || len(tr) < period+1 {
		return 0
	}
	atr := 0.0
	for _, v := range tr[1 : period+1] {
		atr += v
	}
	atr /= float64(period)
	for _, v := range tr[period+1:] {
		atr = (atr*float64(period-1) + v) / float64(period)
	}
	return atr
}

// ADX computes Wilder's average directional index. Returns 0 when the
// series is too short to smooth.
func ADX(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < 2*period+1 || len(highs) != n || len(lows) != n {
		return 0
	}
	tr := TrueRanges(highs, lows, closes)

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	var smTR, smPlus, smMinus float64
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := func() float64 {
		if smTR == 0 {
			return 0
		}
		pdi := 100 * smPlus / smTR
		mdi := 100 * smMinus / smTR
		if pdi+mdi == 0 {
			return 0
		}
		return 100 * math.Abs(pdi-mdi) / (pdi + mdi)
	}

	adx := 0.0
	dxCount := 0
	for i := period + 1; i < n; i++ {
		smTR = smTR - smTR/float64(period) + tr[i]
		smPlus = smPlus - smPlus/float64(period) + plusDM[i]
		smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		d := dx()
		dxCount++
		if dxCount <= period {
			adx += d
			if dxCount == period {
				adx /= float64(period)
			}
		} else {
			adx = (adx*float64(period-1) + d) / float64(period)
		}
	}
	if dxCount < period {
		return 0
	}
	return adx
}

// MACD returns the MACD line, signal line and histogram for the last bar.
func MACD(values []float64, fast, slow, signal int) (macd, sig, hist float64) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal {
		return 0, 0, 0
	}
	fastS := EMASeries(values, fast)
	slowS := EMASeries(values, slow)
	// Align: slow series starts (slow-fast) bars later.
	offset := slow - fast
	n := len(slowS)
	line := make([]float64, n)
	for i := 0; i < n; i++ {
		line[i] = fastS[i+offset] - slowS[i]
	}
	sigS := EMASeries(line, signal)
	if len(sigS) == 0 {
		return 0, 0, 0
	}
	macd = line[len(line)-1]
	sig = sigS[len(sigS)-1]
	return macd, sig, macd - sig
}

// Bollinger returns middle/upper/lower bands over the last period values.
func Bollinger(values []float64, period int, width float64) (mid, upper, lower float64) {
	if period <= 0 || len(values) < period {
		return 0, 0, 0
	}
	mid = SMA(values, period)
	variance := 0.0
	for _, v := range values[len(values)-period:] {
		d := v - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return mid, mid + width*sd, mid - width*sd
}
