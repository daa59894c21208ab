package market

// Instrument holds per-symbol contract metadata needed for sizing and
// price math. Loaded from config at startup and immutable afterwards.
type Instrument struct {
	Symbol     string  `yaml:"symbol"`
	Multiplier int     `yaml:"multiplier"`
	TickSize   float64 `yaml:"tick_size"`
	TickValue  float64 `yaml:"tick_value"`
	MinLot     float64 `yaml:"min_lot"`
	MaxLot     float64 `yaml:"max_lot"`
	LotStep    float64 `yaml:"lot_step"`
}

// InstrumentTable resolves symbols to their contract metadata.
type InstrumentTable map[string]Instrument

// Lookup returns the instrument spec, falling back to conservative defaults
// for symbols missing from config so a thin config never sizes to zero.
func (t InstrumentTable) Lookup(symbol string) Instrument {
	if in, ok := t[symbol]; ok {
		return in
	}
	return Instrument{
		Symbol:     symbol,
		Multiplier: 100,
		TickSize:   0.01,
		TickValue:  0.01,
		MinLot:     0.5,
		MaxLot:     2000,
		LotStep:    0.01,
	}
}
