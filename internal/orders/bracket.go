// Package orders builds the order specifications the engine submits:
// entry brackets, one-cancels-all exit groups, and market sells.
//
// Linked groups rely on the broker's release semantics: every order but
// the last is submitted with Transmit false, and the final order's
// Transmit true releases the whole chain atomically. Order IDs within a
// group are contiguous, reserved in one call by the caller.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensqt/daytrader/internal/core"
)

// Builder constructs order specs with the configured time gates.
type Builder struct {
	entryTTL     time.Duration // entry order lifetime
	closeLegLead time.Duration // close leg activates at close minus lead
}

// NewBuilder creates a Builder.
func NewBuilder(entryTTL, closeLegLead time.Duration) *Builder {
	return &Builder{
		entryTTL:     entryTTL,
		closeLegLead: closeLegLead,
	}
}

// EntryBracketLegs returns how many order IDs an entry bracket consumes.
func EntryBracketLegs(withCloseLeg bool) int {
	if withCloseLeg {
		return 4
	}
	return 3
}

// OCALegs returns how many order IDs an OCA exit group consumes.
func OCALegs(withCloseLeg bool) int {
	if withCloseLeg {
		return 3
	}
	return 2
}

// EntryBracket builds parent buy limit, profit target, stop loss and the
// optional sell-on-close leg. The parent carries a good-till-date of
// now plus the entry TTL so an untriggered entry expires on its own.
func (b *Builder) EntryBracket(firstID int64, c core.Contract, qty, buyLimit, target, stop decimal.Decimal, withCloseLeg bool, closeTime, now time.Time) []core.OrderSpec {
	parent := core.OrderSpec{
		OrderID:      firstID,
		Contract:     c,
		Side:         core.SideBuy,
		Type:         core.OrderLimit,
		TIF:          core.TIFGTD,
		Quantity:     qty,
		LimitPrice:   buyLimit,
		GoodTillDate: now.Add(b.entryTTL),
		Transmit:     false,
	}
	profit := core.OrderSpec{
		OrderID:    firstID + 1,
		ParentID:   firstID,
		Contract:   c,
		Side:       core.SideSell,
		Type:       core.OrderLimit,
		TIF:        core.TIFGTC,
		Quantity:   qty,
		LimitPrice: target,
		Transmit:   false,
	}
	stopLeg := core.OrderSpec{
		OrderID:  firstID + 2,
		ParentID: firstID,
		Contract: c,
		Side:     core.SideSell,
		Type:     core.OrderStop,
		TIF:      core.TIFGTC,
		Quantity: qty,
		AuxPrice: stop,
		Transmit: false,
	}

	specs := []core.OrderSpec{parent, profit, stopLeg}
	if withCloseLeg {
		specs = append(specs, core.OrderSpec{
			OrderID:       firstID + 3,
			ParentID:      firstID,
			Contract:      c,
			Side:          core.SideSell,
			Type:          core.OrderMarket,
			TIF:           core.TIFDay,
			Quantity:      qty,
			GoodAfterTime: closeTime.Add(-b.closeLegLead),
			Transmit:      false,
		})
	}
	specs[len(specs)-1].Transmit = true
	return specs
}

// OCABracket builds a profit/stop(+close) one-cancels-all exit group for
// an already-held position.
func (b *Builder) OCABracket(firstID int64, c core.Contract, qty, target, stop decimal.Decimal, withCloseLeg bool, closeTime time.Time) []core.OrderSpec {
	group := fmt.Sprintf("OCA_%d", firstID)

	profit := core.OrderSpec{
		OrderID:    firstID,
		Contract:   c,
		Side:       core.SideSell,
		Type:       core.OrderLimit,
		TIF:        core.TIFGTC,
		Quantity:   qty,
		LimitPrice: target,
		OCAGroup:   group,
		OCAType:    2,
		Transmit:   false,
	}
	stopLeg := core.OrderSpec{
		OrderID:  firstID + 1,
		Contract: c,
		Side:     core.SideSell,
		Type:     core.OrderStop,
		TIF:      core.TIFGTC,
		Quantity: qty,
		AuxPrice: stop,
		OCAGroup: group,
		OCAType:  2,
		Transmit: false,
	}

	specs := []core.OrderSpec{profit, stopLeg}
	if withCloseLeg {
		specs = append(specs, core.OrderSpec{
			OrderID:       firstID + 2,
			Contract:      c,
			Side:          core.SideSell,
			Type:          core.OrderMarket,
			TIF:           core.TIFDay,
			Quantity:      qty,
			GoodAfterTime: closeTime.Add(-b.closeLegLead),
			OCAGroup:      group,
			OCAType:       2,
			Transmit:      false,
		})
	}
	specs[len(specs)-1].Transmit = true
	return specs
}

// MarketSell builds an immediately-transmitting market sell.
func (b *Builder) MarketSell(orderID int64, c core.Contract, qty decimal.Decimal) core.OrderSpec {
	return core.OrderSpec{
		OrderID:  orderID,
		Contract: c,
		Side:     core.SideSell,
		Type:     core.OrderMarket,
		TIF:      core.TIFDay,
		Quantity: qty,
		Transmit: true,
	}
}
