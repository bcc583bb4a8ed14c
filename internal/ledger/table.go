package ledger

import (
	"sync"

	"github.com/opensqt/daytrader/internal/core"
)

// Table is the ordered, append-only collection of instrument rows.
// The event dispatch goroutine writes under Mu; the tick archiver reads
// under RLock so it never observes a torn row.
type Table struct {
	Mu sync.RWMutex

	rows   []*Row
	logger core.ILogger
}

// NewTable creates an empty table.
func NewTable(logger core.ILogger) *Table {
	return &Table{
		logger: logger.WithField("component", "ledger"),
	}
}

// Append adds a row and assigns its request ID. Caller must hold Mu.
func (t *Table) Append(r *Row) int {
	r.ReqID = len(t.rows)
	r.logger = t.logger
	t.rows = append(t.rows, r)
	return r.ReqID
}

// Row returns the row registered under the request ID. Caller must hold
// Mu or the read lock.
func (t *Table) Row(reqID int) (*Row, bool) {
	if reqID < 0 || reqID >= len(t.rows) {
		return nil, false
	}
	return t.rows[reqID], true
}

// Len returns the row count. Caller must hold Mu or the read lock.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the backing row slice. Caller must hold Mu or the read
// lock for the duration of any access.
func (t *Table) Rows() []*Row {
	return t.rows
}

// BySymbol returns every row for the symbol, in table order. Caller must
// hold Mu or the read lock.
func (t *Table) BySymbol(symbol string) []*Row {
	var out []*Row
	for _, r := range t.rows {
		if r.Symbol == symbol {
			out = append(out, r)
		}
	}
	return out
}

// FindByOrderID returns the row owning the broker order ID in any of its
// correlation slots, along with which leg matched. Caller must hold Mu or
// the read lock.
func (t *Table) FindByOrderID(orderID int64) (*Row, OrderLeg, bool) {
	if orderID == 0 {
		return nil, LegNone, false
	}
	for _, r := range t.rows {
		switch orderID {
		case r.ParentOrderID:
			return r, LegParent, true
		case r.ProfitOrderID:
			return r, LegProfit, true
		case r.StopOrderID:
			return r, LegStop, true
		case r.CloseOrderID:
			return r, LegClose, true
		case r.MarketOrderID:
			return r, LegMarket, true
		}
	}
	return nil, LegNone, false
}

// OrderLeg identifies which slot of a row an order ID belongs to.
type OrderLeg int

const (
	LegNone OrderLeg = iota
	LegParent
	LegProfit
	LegStop
	LegClose
	LegMarket
)

func (l OrderLeg) String() string {
	switch l {
	case LegParent:
		return "parent"
	case LegProfit:
		return "profit"
	case LegStop:
		return "stop"
	case LegClose:
		return "close"
	case LegMarket:
		return "market"
	default:
		return "none"
	}
}
