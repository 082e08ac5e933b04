package indicators

// EMA is an exponential moving average over single values, used here for
// Wilder-style smoothing of the true range.
type EMA struct {
	period      int
	alpha       float64
	lastValue   float64
	initialized bool
}

// NewEMA creates a new EMA with the standard alpha for the given period
func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update feeds a single value into the EMA and returns the updated value.
func (e *EMA) Update(value float64) float64 {
	if !e.initialized {
		e.lastValue = value
		e.initialized = true
	} else {
		e.lastValue = (value * e.alpha) + (e.lastValue * (1 - e.alpha))
	}
	return e.lastValue
}

// Value returns the last computed EMA value.
func (e *EMA) Value() float64 {
	return e.lastValue
}

// Reset clears the EMA state.
func (e *EMA) Reset() {
	e.lastValue = 0
	e.initialized = false
}
