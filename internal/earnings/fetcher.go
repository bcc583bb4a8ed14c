// Package earnings performs the advisory next-earnings-date lookup. It
// is best effort in the strictest sense: every failure is logged and
// swallowed, and nothing here ever gates a trading decision.
package earnings

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/opensqt/daytrader/internal/config"
	"github.com/opensqt/daytrader/internal/core"
	"github.com/opensqt/daytrader/pkg/concurrency"
	pkghttp "github.com/opensqt/daytrader/pkg/http"
)

// isoDate matches the first ISO-formatted date embedded in a calendar
// page. Pages differ in layout but carry the date in a meta attribute.
var isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Fetcher queries the earnings-calendar endpoint for each symbol.
type Fetcher struct {
	client *pkghttp.Client
	pool   *concurrency.WorkerPool
	delay  time.Duration
	logger core.ILogger
}

// NewFetcher creates a Fetcher from the earnings configuration.
func NewFetcher(cfg config.EarningsConfig, logger core.ILogger) *Fetcher {
	log := logger.WithField("component", "earnings")
	return &Fetcher{
		client: pkghttp.NewClient(cfg.BaseURL, 15*time.Second),
		pool: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:       "earnings",
			MaxWorkers: cfg.PoolWorkers,
		}, logger),
		delay:  time.Duration(cfg.RequestDelayMLS) * time.Millisecond,
		logger: log,
	}
}

// Lookup schedules one background pass over the distinct symbols. The
// requests run sequentially with the configured inter-request delay so
// the endpoint is never hammered. Returns immediately.
func (f *Fetcher) Lookup(ctx context.Context, symbols []string) {
	distinct := dedupe(symbols)
	if len(distinct) == 0 {
		return
	}

	err := f.pool.Submit(func() {
		for i, symbol := range distinct {
			if i > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(f.delay):
				}
			}
			f.fetchOne(ctx, symbol)
		}
	})
	if err != nil {
		f.logger.Warn("Earnings lookup not scheduled", "error", err)
	}
}

// Stop waits for any in-flight lookup to finish.
func (f *Fetcher) Stop() {
	f.pool.Stop()
}

func (f *Fetcher) fetchOne(ctx context.Context, symbol string) {
	body, err := f.client.Get(ctx, "/"+symbol, nil)
	if err != nil {
		f.logger.Warn("Earnings lookup failed", "symbol", symbol, "error", err)
		return
	}

	date, ok := NextEarningsDate(body)
	if !ok {
		f.logger.Warn("No earnings date found", "symbol", symbol)
		return
	}
	f.logger.Info("Next earnings date", "symbol", symbol, "date", date.Format("2006-01-02"))
}

// NextEarningsDate extracts the first parseable ISO date from a calendar
// page body.
func NextEarningsDate(body []byte) (time.Time, bool) {
	m := isoDate.Find(body)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", string(m))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
