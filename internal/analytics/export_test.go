package analytics

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosix/stagebacktest/internal/common"
	"github.com/kosix/stagebacktest/internal/portfolio"
)

func TestWriteTradeCSVLeadsWithUTF8BOM(t *testing.T) {
	var buf bytes.Buffer
	ledger := []portfolio.TradeRecord{
		{
			Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Ticker: "005930",
			Action: common.ActionSell, Shares: 100,
			EntryPrice: d("50050"), ExitPrice: d("51948"),
			PnL: d("187280.03"), ReturnPct: 3.74, HoldingDays: 1,
			Reason: "exit_signal (level 3)", Commission: d("7793.97"),
		},
	}

	require.NoError(t, WriteTradeCSV(&buf, ledger))

	out := buf.Bytes()
	require.True(t, bytes.HasPrefix(out, utf8BOM), "CSV output must lead with a UTF-8 BOM")

	reader := csv.NewReader(bytes.NewReader(out[len(utf8BOM):]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one trade

	assert.Equal(t, "ticker", rows[0][1])
	assert.Equal(t, "005930", rows[1][1])
	assert.Equal(t, "sell", rows[1][2])
}

func TestWriteTradeCSVEmptyLedgerStillHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTradeCSV(&buf, nil))

	reader := csv.NewReader(bytes.NewReader(buf.Bytes()[len(utf8BOM):]))
	rows, err := reader.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
