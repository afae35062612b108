package stage

import (
	"fmt"

	"github.com/kosix/stagebacktest/internal/numerics"
)

// Action is the recommended action a stage's strategy descriptor carries.
type Action string

const (
	ActionBuy        Action = "buy"
	ActionHoldOrExit Action = "hold_or_exit"
	ActionSellOrShort Action = "sell_or_short"
	ActionShortOrWait Action = "short_or_wait"
	ActionCoverOrBuy  Action = "cover_or_buy"
)

// RiskLevel is the qualitative risk tag a stage's strategy descriptor
// carries.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AlignmentStrength is strong iff all three MACD directions are up, or all
// three are down.
type AlignmentStrength string

const (
	AlignmentStrong AlignmentStrength = "strong"
	AlignmentWeak   AlignmentStrength = "weak"
)

// Alignment summarizes MACD direction agreement for a strategy descriptor,
// present only when direction labels were supplied.
type Alignment struct {
	UpCount    int
	DownCount  int
	NeutralCount int
	Strength   AlignmentStrength
}

// Descriptor is the per-stage strategy metadata returned by
// StageStrategy (spec §4.2).
type Descriptor struct {
	Stage          Stage
	Name           string
	MarketPhase    string
	Action         Action
	PositionSize   string
	RiskLevel      RiskLevel
	Description    string
	KeyPoints      []string
	Alignment      *Alignment
}

var descriptors = map[Stage]Descriptor{
	1: {
		Stage: 1, Name: "Stable Uptrend", MarketPhase: "markup",
		Action: ActionBuy, PositionSize: "full", RiskLevel: RiskLow,
		Description: "EMA5 > EMA20 > EMA40: the trend is established and all three averages confirm it.",
		KeyPoints:   []string{"Trend confirmed on all three EMAs", "Favor adds on pullbacks", "Trail stops rather than tightening aggressively"},
	},
	2: {
		Stage: 2, Name: "Early Reversal Down", MarketPhase: "distribution",
		Action: ActionSellOrShort, PositionSize: "reduced", RiskLevel: RiskMedium,
		Description: "EMA20 > EMA5 > EMA40: the fast average has slipped below the medium average, an early warning.",
		KeyPoints:   []string{"Fast EMA crossed below medium EMA", "Reduce exposure", "Watch for confirmation at Stage 3"},
	},
	3: {
		Stage: 3, Name: "Downtrend Confirming", MarketPhase: "markdown",
		Action: ActionSellOrShort, PositionSize: "none", RiskLevel: RiskHigh,
		Description: "EMA20 > EMA40 > EMA5: the fastest average is now the weakest, confirming the down move.",
		KeyPoints:   []string{"Downtrend confirmed", "Avoid new longs", "Existing longs should be exiting"},
	},
	4: {
		Stage: 4, Name: "Stable Downtrend", MarketPhase: "markdown",
		Action: ActionShortOrWait, PositionSize: "none", RiskLevel: RiskHigh,
		Description: "EMA40 > EMA20 > EMA5: the trend is established to the downside on all three averages.",
		KeyPoints:   []string{"Trend confirmed down on all three EMAs", "No long entries", "Wait for Stage 5 reversal signs"},
	},
	5: {
		Stage: 5, Name: "Early Reversal Up", MarketPhase: "accumulation",
		Action: ActionCoverOrBuy, PositionSize: "starter", RiskLevel: RiskMedium,
		Description: "EMA40 > EMA5 > EMA20: the fast average has lifted above the medium average, an early tell.",
		KeyPoints:   []string{"Fast EMA crossed above medium EMA", "Starter positions only", "Watch for confirmation at Stage 6"},
	},
	6: {
		Stage: 6, Name: "Uptrend Confirming", MarketPhase: "markup",
		Action: ActionBuy, PositionSize: "full", RiskLevel: RiskLow,
		Description: "EMA5 > EMA40 > EMA20: the fastest average has overtaken both, confirming the up move.",
		KeyPoints:   []string{"Uptrend confirmed", "Favor new entries", "Tighten stops only after a clear stall"},
	},
}

// StageStrategy returns the descriptor for stage, optionally enriched with
// an alignment summary when MACD direction labels are supplied. Stage must
// be an integer in 1..6; any other input is a hard error (spec §4.2).
func StageStrategy(s Stage, macdDirections ...numerics.Direction) (Descriptor, error) {
	d, ok := descriptors[s]
	if !ok {
		return Descriptor{}, fmt.Errorf("stage: StageStrategy: stage must be in 1..6, got %d", s)
	}
	if len(macdDirections) == 0 {
		return d, nil
	}
	a := &Alignment{}
	for _, dir := range macdDirections {
		switch dir {
		case numerics.DirectionUp:
			a.UpCount++
		case numerics.DirectionDown:
			a.DownCount++
		default:
			a.NeutralCount++
		}
	}
	strong := len(macdDirections) == 3 && (a.UpCount == 3 || a.DownCount == 3)
	if strong {
		a.Strength = AlignmentStrong
	} else {
		a.Strength = AlignmentWeak
	}
	d.Alignment = a
	return d, nil
}
