package pipeline

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Default pricing for the resolver's extraction path. The fallback path uses
// the same formula; degraded resolution does not change pricing.
const (
	DefaultUploadFlatFee = 0.015
	DefaultPerFrameFee   = 0.0005
)

// Pricing holds the fee schedule for frame extraction.
type Pricing struct {
	UploadFlatFee float64
	PerFrameFee   float64
}

// DefaultPricing returns the standard fee schedule.
func DefaultPricing() Pricing {
	return Pricing{UploadFlatFee: DefaultUploadFlatFee, PerFrameFee: DefaultPerFrameFee}
}

// ExtractionCost returns the cost of extracting frameCount frames, rounded to
// sub-cent precision (3 decimals).
func ExtractionCost(frameCount int, p Pricing) float64 {
	return roundTo(p.UploadFlatFee+float64(frameCount)*p.PerFrameFee, 3)
}

// CostLedger accumulates named cost contributions from independent
// subsystems. Contributors report their own cumulative totals, so Record sets
// rather than adds; amounts are expected to be non-negative and
// non-decreasing per contributor.
type CostLedger struct {
	mu      sync.RWMutex
	amounts map[string]float64
}

// NewCostLedger returns an empty ledger.
func NewCostLedger() *CostLedger {
	return &CostLedger{amounts: make(map[string]float64)}
}

// Record sets the latest known cumulative amount for contributor. A negative
// amount is a programming error and panics.
func (l *CostLedger) Record(contributor string, amount float64) {
	if amount < 0 {
		panic(fmt.Sprintf("cost ledger: negative amount %f for %q", amount, contributor))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.amounts[contributor] = amount
}

// Total returns the sum across all contributors at sub-cent precision
// (3 decimals).
func (l *CostLedger) Total() float64 {
	return roundTo(l.rawTotal(), 3)
}

// DisplayTotal returns the sum rounded for display aggregation (2 decimals).
func (l *CostLedger) DisplayTotal() float64 {
	return roundTo(l.rawTotal(), 2)
}

func (l *CostLedger) rawTotal() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	sum := 0.0
	for _, v := range l.amounts {
		sum += v
	}
	return sum
}

// CostLine is one contributor's entry in a ledger breakdown.
type CostLine struct {
	Contributor string  `json:"contributor"`
	Amount      float64 `json:"amount"`
}

// Breakdown returns a copy of the ledger ordered by contributor name, for
// the cost-tracker display.
func (l *CostLedger) Breakdown() []CostLine {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lines := make([]CostLine, 0, len(l.amounts))
	for name, amount := range l.amounts {
		lines = append(lines, CostLine{Contributor: name, Amount: amount})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Contributor < lines[j].Contributor })
	return lines
}

// roundTo rounds v to the given number of decimal places.
func roundTo(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
