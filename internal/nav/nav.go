// Package nav provides the fund price oracle contract and a static provider.
package nav

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Provider returns the current unit price (NAV) for a fund. The engine treats
// every returned price as an authoritative point-in-time snapshot and records
// it onto the order; prices are never re-queried after order creation.
type Provider interface {
	// CurrentNAV returns the fund's unit price. known is false when the fund
	// is not recognized and the fallback price was returned instead.
	CurrentNAV(fundName string) (price decimal.Decimal, known bool)
}

// StaticProvider serves NAVs from a fixed in-memory table, with a fallback
// price for unrecognized fund names. Fund names are matched
// case-insensitively; the config loader lowercases table keys.
type StaticProvider struct {
	mu       sync.RWMutex
	funds    map[string]decimal.Decimal
	fallback decimal.Decimal
}

// NewStaticProvider creates a provider from a fund->price table.
func NewStaticProvider(funds map[string]float64, fallback float64) *StaticProvider {
	table := make(map[string]decimal.Decimal, len(funds))
	for name, price := range funds {
		table[strings.ToLower(name)] = decimal.NewFromFloat(price)
	}
	return &StaticProvider{
		funds:    table,
		fallback: decimal.NewFromFloat(fallback),
	}
}

// DefaultProvider returns a provider with the built-in fund table and the
// standard 50.00 fallback.
func DefaultProvider() *StaticProvider {
	return NewStaticProvider(map[string]float64{
		"SBI Bluechip Fund":   45.67,
		"HDFC Mid Cap Fund":   58.32,
		"Axis Small Cap Fund": 42.15,
	}, 50.00)
}

// CurrentNAV implements Provider.
func (p *StaticProvider) CurrentNAV(fundName string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if price, ok := p.funds[strings.ToLower(fundName)]; ok {
		return price, true
	}
	return p.fallback, false
}

// SetNAV updates or adds a fund price.
func (p *StaticProvider) SetNAV(fundName string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.funds[strings.ToLower(fundName)] = price
}
