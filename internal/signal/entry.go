// Package signal implements entry/exit signal synthesis, 0-100 strength
// scoring and four-filter admission over an indicator+stage-annotated bar
// table (spec §4.3).
package signal

import (
	"fmt"

	"github.com/kosix/stagebacktest/internal/numerics"
	"github.com/kosix/stagebacktest/internal/stage"
)

// EntryCode is the encoded Entry_Signal value (spec §4.3).
type EntryCode int

const (
	EarlySell  EntryCode = -2
	NormalSell EntryCode = -1
	NoEntry    EntryCode = 0
	NormalBuy  EntryCode = 1
	EarlyBuy   EntryCode = 2
)

// EntryType is the textual Signal_Type that accompanies a non-zero entry
// code.
type EntryType string

const (
	EntryTypeBuy  EntryType = "buy"
	EntryTypeSell EntryType = "sell"
	EntryTypeNone EntryType = ""
)

// EntryResult is one row's entry-signal outcome.
type EntryResult struct {
	Signal EntryCode
	Type   EntryType
	Reason string
}

// EntryRow computes the entry signal for a single row, given its stage and
// the three MACD direction labels. enableEarlySignals gates the Stage-5 /
// Stage-2 "early" conditions (spec §4.3; config default false).
func EntryRow(s stage.Stage, dirUpper, dirMiddle, dirLower numerics.Direction, enableEarlySignals bool) EntryResult {
	allUp := dirUpper == numerics.DirectionUp && dirMiddle == numerics.DirectionUp && dirLower == numerics.DirectionUp
	allDown := dirUpper == numerics.DirectionDown && dirMiddle == numerics.DirectionDown && dirLower == numerics.DirectionDown

	if s == 6 && allUp {
		return EntryResult{Signal: NormalBuy, Type: EntryTypeBuy, Reason: "Stage 6 with all MACD directions up: normal buy"}
	}
	if s == 3 && allDown {
		return EntryResult{Signal: NormalSell, Type: EntryTypeSell, Reason: "Stage 3 with all MACD directions down: normal sell"}
	}
	if enableEarlySignals {
		if s == 5 && allUp {
			return EntryResult{Signal: EarlyBuy, Type: EntryTypeBuy, Reason: "Stage 5 with all MACD directions up: early buy"}
		}
		if s == 2 && allDown {
			return EntryResult{Signal: EarlySell, Type: EntryTypeSell, Reason: "Stage 2 with all MACD directions down: early sell"}
		}
	}
	return EntryResult{Signal: NoEntry, Type: EntryTypeNone}
}

// EntrySeries is the per-row entry-signal column for a whole table.
type EntrySeries []EntryResult

// GenerateEntrySignal computes EntrySeries for every row of the table,
// using its per-row stage and MACD direction labels. Rows whose stage or
// any direction is undefined produce NoEntry.
func GenerateEntrySignal(t *numerics.EnrichedTable, stages stage.Series, enableEarlySignals bool) (EntrySeries, error) {
	if t == nil {
		return nil, fmt.Errorf("signal: GenerateEntrySignal: nil table")
	}
	n := t.Len()
	if len(stages) != n {
		return nil, fmt.Errorf("signal: GenerateEntrySignal: stage series length %d != table length %d", len(stages), n)
	}
	out := make(EntrySeries, n)
	for i := 0; i < n; i++ {
		st, stOK := stages[i].Get()
		du, okU := t.DirUpper[i].Get()
		dm, okM := t.DirMiddle[i].Get()
		dl, okL := t.DirLower[i].Get()
		if !stOK || !okU || !okM || !okL {
			out[i] = EntryResult{Signal: NoEntry, Type: EntryTypeNone}
			continue
		}
		out[i] = EntryRow(st, du, dm, dl, enableEarlySignals)
	}
	return out, nil
}
