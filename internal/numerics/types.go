package numerics

// Direction is the categorical trend label a MACD line value carries
// (spec §3 "Direction labels for MACD lines").
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "neutral"
	}
}

// Agreement summarizes whether all three MACD directions concur
// (spec §3 "Direction_Agreement").
type Agreement int

const (
	AgreementMixed Agreement = iota
	AgreementAllUp
	AgreementAllDown
)

func (a Agreement) String() string {
	switch a {
	case AgreementAllUp:
		return "all_up"
	case AgreementAllDown:
		return "all_down"
	default:
		return "mixed"
	}
}

// MACDTriple is one (fast, slow, signal) MACD configuration's three
// derived series.
type MACDTriple struct {
	Line      Series
	Signal    Series
	Histogram Series
}

// MACDConfig names one of the three triple-MACD configurations of spec §4.1.
type MACDConfig struct {
	Name   string
	Fast   int
	Slow   int
	Signal int
}

var (
	MACDUpperConfig  = MACDConfig{Name: "upper", Fast: 5, Slow: 20, Signal: 9}
	MACDMiddleConfig = MACDConfig{Name: "middle", Fast: 5, Slow: 40, Signal: 9}
	MACDLowerConfig  = MACDConfig{Name: "lower", Fast: 20, Slow: 40, Signal: 9}
)
