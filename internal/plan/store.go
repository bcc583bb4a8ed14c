// Package plan reads the externally-maintained trading plan workbook and
// reconciles it into the ledger. The operator edits the file while the
// engine runs; reads are debounced full reloads, writes are surgical
// single-cell patches.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/opensqt/daytrader/internal/core"
)

// Column layout of the plan sheet. Header row 1, data from row 2.
// Stop and quantity keep fixed columns because the engine patches those
// two cells in place.
const (
	colSymbol         = 0
	colCurrency       = 1
	colExchange       = 2
	colSecType        = 3
	colEntry          = 4
	colBuyLimit       = 5
	colTarget         = 6
	colSMASell        = 7
	colStop           = 8 // column I
	colQuantity       = 9 // column J
	colIsOpenPosition = 10
	colSellOnClose    = 11
	colStopAtLow      = 12
	colAddAndReduce   = 13

	cellStopColumn     = "I"
	cellQuantityColumn = "J"
)

// Row is one parsed plan line.
type Row struct {
	Symbol   string
	Currency string
	Exchange string
	SecType  string

	Entry    decimal.Decimal
	BuyLimit decimal.Decimal
	Target   decimal.Decimal
	Stop     decimal.Decimal
	Quantity decimal.Decimal

	SMASell decimal.Decimal
	HasSMA  bool

	IsOpenPosition bool
	SellOnClose    bool
	StopAtLowOfDay bool
	AddAndReduce   bool
}

// Store reads and patches one plan workbook.
type Store struct {
	path   string
	logger core.ILogger

	writeRetry retrypolicy.RetryPolicy[any]
}

// NewStore creates a Store. Cell patches retry writeAttempts times with a
// fixed delay, riding out the operator having the file open for saving.
func NewStore(path string, writeAttempts int, writeDelay time.Duration, logger core.ILogger) *Store {
	return &Store{
		path:   path,
		logger: logger.WithField("component", "plan"),
		writeRetry: retrypolicy.NewBuilder[any]().
			WithMaxRetries(writeAttempts - 1).
			WithDelay(writeDelay).
			Build(),
	}
}

// Path returns the workbook location.
func (s *Store) Path() string { return s.path }

// Load reads the full plan. Callers treat errors as "skip this sync
// cycle"; the file being locked by the operator is expected.
func (s *Store) Load() ([]Row, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open plan file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read plan sheet: %w", err)
	}

	var rows []Row
	for i, cells := range raw {
		if i == 0 {
			continue // header
		}
		if len(cells) == 0 || strings.TrimSpace(cell(cells, colSymbol)) == "" {
			continue
		}
		row, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("plan row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PatchStop writes the stop price of plan row index i (zero-based, data
// order) back into the workbook.
func (s *Store) PatchStop(i int, stop decimal.Decimal) error {
	return s.patchCell(fmt.Sprintf("%s%d", cellStopColumn, i+2), stop)
}

// PatchQuantity writes the quantity of plan row index i back into the
// workbook.
func (s *Store) PatchQuantity(i int, qty decimal.Decimal) error {
	return s.patchCell(fmt.Sprintf("%s%d", cellQuantityColumn, i+2), qty)
}

func (s *Store) patchCell(cellRef string, v decimal.Decimal) error {
	err := failsafe.With[any](s.writeRetry).Run(func() error {
		f, err := excelize.OpenFile(s.path)
		if err != nil {
			return err
		}
		defer f.Close()

		sheet := f.GetSheetName(0)
		val, _ := v.Float64()
		if err := f.SetCellValue(sheet, cellRef, val); err != nil {
			return err
		}
		return f.Save()
	})
	if err != nil {
		s.logger.Error("Plan cell patch failed", "cell", cellRef, "error", err)
		return fmt.Errorf("patch plan cell %s: %w", cellRef, err)
	}
	s.logger.Info("Plan cell patched", "cell", cellRef, "value", v.String())
	return nil
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func parseRow(cells []string) (Row, error) {
	row := Row{
		Symbol:   cell(cells, colSymbol),
		Currency: cell(cells, colCurrency),
		Exchange: cell(cells, colExchange),
		SecType:  cell(cells, colSecType),
	}

	var err error
	if row.Entry, err = parseDecimal(cell(cells, colEntry), "entry"); err != nil {
		return row, err
	}
	if row.BuyLimit, err = parseDecimal(cell(cells, colBuyLimit), "buy limit"); err != nil {
		return row, err
	}
	if row.Target, err = parseDecimal(cell(cells, colTarget), "target"); err != nil {
		return row, err
	}
	if row.Stop, err = parseDecimal(cell(cells, colStop), "stop"); err != nil {
		return row, err
	}
	if row.Quantity, err = parseDecimal(cell(cells, colQuantity), "quantity"); err != nil {
		return row, err
	}

	if sma := cell(cells, colSMASell); sma != "" {
		if row.SMASell, err = parseDecimal(sma, "sma sell"); err != nil {
			return row, err
		}
		row.HasSMA = true
	}

	row.IsOpenPosition = parseBool(cell(cells, colIsOpenPosition))
	row.SellOnClose = parseBool(cell(cells, colSellOnClose))
	row.StopAtLowOfDay = parseBool(cell(cells, colStopAtLow))
	row.AddAndReduce = parseBool(cell(cells, colAddAndReduce))
	return row, nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad %s value %q", field, s)
	}
	return d, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}
