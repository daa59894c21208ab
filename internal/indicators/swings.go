package indicators

// SwingPoint is a local extremum in a price series.
type SwingPoint struct {
	Index int
	Price float64
}

// SwingHighs returns indices whose high strictly exceeds every high within
// lookback bars on both sides. Ordered oldest-first like the input.
func SwingHighs(highs []float64, lookback int) []SwingPoint {
	return swings(highs, lookback, func(a, b float64) bool { return a > b })
}

// SwingLows returns indices whose low is strictly below every low within
// lookback bars on both sides.
func SwingLows(lows []float64, lookback int) []SwingPoint {
	return swings(lows, lookback, func(a, b float64) bool { return a < b })
}

func swings(values []float64, lookback int, moreExtreme func(a, b float64) bool) []SwingPoint {
	if lookback <= 0 || len(values) < 2*lookback+1 {
		return nil
	}
	var out []SwingPoint
	for i := lookback; i < len(values)-lookback; i++ {
		ok := true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if !moreExtreme(values[i], values[j]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, SwingPoint{Index: i, Price: values[i]})
		}
	}
	return out
}

// LastN returns the up-to-n most recent swing points, most recent last.
func LastN(points []SwingPoint, n int) []SwingPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
