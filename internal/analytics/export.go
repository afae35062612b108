package analytics

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/kosix/stagebacktest/internal/portfolio"
)

// utf8BOM is prefixed to the CSV export so that Excel on Windows (the
// common consumer of KRX trade exports) detects UTF-8 instead of guessing
// a legacy codepage (spec §4.9 "UTF-8 BOM CSV of the ledger").
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteTradeCSV writes the closed-trade ledger as a UTF-8-BOM CSV to w,
// one row per portfolio.TradeRecord, in ledger order.
func WriteTradeCSV(w io.Writer, ledger []portfolio.TradeRecord) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"date", "ticker", "action", "shares", "entry_price", "exit_price",
		"pnl", "return_pct", "holding_days", "reason", "commission",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, t := range ledger {
		row := []string{
			t.Date.Format("2006-01-02"),
			t.Ticker,
			string(t.Action),
			strconv.Itoa(t.Shares),
			t.EntryPrice.StringFixed(2),
			t.ExitPrice.StringFixed(2),
			t.PnL.StringFixed(2),
			strconv.FormatFloat(t.ReturnPct, 'f', 4, 64),
			strconv.Itoa(t.HoldingDays),
			t.Reason,
			t.Commission.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
