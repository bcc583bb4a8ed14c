// Package archive samples the ledger once per second into two append-only
// tables and serializes them, with the full ledger, to workbooks at
// session end.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/internal/ledger"
)

// minPersistRows is the floor below which a tick table is considered
// noise and not written out.
const minPersistRows = 100

var tickHeader = []interface{}{
	"Timestamp", "Symbol", "Close", "Bid", "Ask", "Last", "AskSize", "BidSize", "Volume",
}

var ledgerHeader = []interface{}{
	"Symbol", "Currency", "Exchange", "SecType", "Entry", "BuyLimit",
	"Target", "Stop", "Quantity", "OpenPosition", "SellOnClose",
	"StopAtLow", "AddAndReduce", "Crossed", "Executed", "Filled",
	"ProfitFilled", "StopFilled", "CloseFilled", "Sold", "High", "Low",
}

// Archiver is the one-second ledger sampler.
type Archiver struct {
	table  *ledger.Table
	logger core.ILogger

	outputDir string
	prefix    string

	sentinelEntry decimal.Decimal
	sentinelStop  decimal.Decimal

	mu          sync.Mutex
	newRows     [][]interface{}
	openRows    [][]interface{}
	minRows     int
	writeOnStop bool

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewArchiver creates an Archiver writing into outputDir with the venue
// file prefix.
func NewArchiver(table *ledger.Table, outputDir, prefix string, sentinelEntry, sentinelStop decimal.Decimal, logger core.ILogger) *Archiver {
	return &Archiver{
		table:         table,
		logger:        logger.WithField("component", "archiver"),
		outputDir:     outputDir,
		prefix:        prefix,
		sentinelEntry: sentinelEntry,
		sentinelStop:  sentinelStop,
		minRows:       minPersistRows,
		writeOnStop:   true,
	}
}

// Start launches the sampling loop for the session window. Safe to call
// more than once; only the first call starts the loop.
func (a *Archiver) Start(ctx context.Context, open, close time.Time) {
	a.startOnce.Do(func() {
		ctx, a.cancel = context.WithCancel(ctx)
		a.wg.Add(1)
		go a.run(ctx, open, close)
		a.logger.Info("Tick archiver started")
	})
}

// Stop terminates the loop and waits for the final writes.
func (a *Archiver) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Archiver) run(ctx context.Context, open, close time.Time) {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	deadline := close.Add(time.Second)
	for {
		select {
		case <-ctx.Done():
			if a.writeOnStop {
				a.persist(close)
			}
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				a.persist(close)
				return
			}
			if !now.Before(open) {
				a.Sample(now)
			}
		}
	}
}

// Sample appends one snapshot of every eligible row. Sentinel rows and
// rows that duplicate the previous row's symbol within the same position
// grouping are skipped.
func (a *Archiver) Sample(now time.Time) {
	a.table.Mu.RLock()
	rows := a.table.Rows()

	type snap struct {
		open bool
		vals []interface{}
	}
	snaps := make([]snap, 0, len(rows))
	var prev *ledger.Row
	for _, r := range rows {
		if r.IsSentinel(a.sentinelEntry, a.sentinelStop) {
			continue
		}
		if prev != nil && prev.Symbol == r.Symbol && prev.IsOpenPosition == r.IsOpenPosition {
			continue
		}
		prev = r
		snaps = append(snaps, snap{
			open: r.IsOpenPosition,
			vals: []interface{}{
				now.Format("2006-01-02 15:04:05"),
				r.Symbol,
				decToF(r.ClosePrice), decToF(r.Bid), decToF(r.Ask), decToF(r.Last),
				decToF(r.AskSize), decToF(r.BidSize), decToF(r.Volume),
			},
		})
	}
	a.table.Mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range snaps {
		if s.open {
			a.openRows = append(a.openRows, s.vals)
		} else {
			a.newRows = append(a.newRows, s.vals)
		}
	}
}

// persist writes the ledger workbook and, when large enough, the two
// tick tables.
func (a *Archiver) persist(close time.Time) {
	date := close.Format("2006-01-02")

	if err := a.WriteLedger(date); err != nil {
		a.logger.Error("Ledger workbook write failed", "error", err)
	}

	a.mu.Lock()
	newRows := a.newRows
	openRows := a.openRows
	a.mu.Unlock()

	if len(newRows) > a.minRows {
		if err := writeTable(a.path(date, "ticks_new"), tickHeader, newRows); err != nil {
			a.logger.Error("Tick table write failed", "table", "new", "error", err)
		}
	}
	if len(openRows) > a.minRows {
		if err := writeTable(a.path(date, "ticks_open"), tickHeader, openRows); err != nil {
			a.logger.Error("Tick table write failed", "table", "open", "error", err)
		}
	}
	a.logger.Info("Session archive written",
		"new_samples", len(newRows), "open_samples", len(openRows))
}

// WriteLedger serializes the full ledger state to the dated workbook.
func (a *Archiver) WriteLedger(date string) error {
	a.table.Mu.RLock()
	rows := make([][]interface{}, 0, a.table.Len())
	for _, r := range a.table.Rows() {
		rows = append(rows, []interface{}{
			r.Symbol, r.Currency, r.Exchange, r.SecType,
			decToF(r.Entry), decToF(r.BuyLimit), decToF(r.Target),
			decToF(r.Stop), decToF(r.Quantity),
			r.IsOpenPosition, r.SellOnClose, r.StopAtLowOfDay, r.AddAndReduce,
			r.Crossed.Is(), r.Executed.Is(), r.Filled.Is(),
			r.ProfitFilled.Is(), r.StopFilled.Is(), r.CloseFilled.Is(),
			r.Sold.Is(), decToF(r.High), decToF(r.Low),
		})
	}
	a.table.Mu.RUnlock()

	return writeTable(a.path(date, "trading_plan"), ledgerHeader, rows)
}

func (a *Archiver) path(date, kind string) string {
	return filepath.Join(a.outputDir, fmt.Sprintf("%s_%s_%s.xlsx", date, kind, a.prefix))
}

func writeTable(path string, header []interface{}, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func decToF(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
