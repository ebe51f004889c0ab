package pipeline

import (
	"math"
	"testing"
)

func TestLedger_record_sets_not_adds(t *testing.T) {
	l := NewCostLedger()
	l.Record("transcription", 0.10)
	l.Record("transcription", 0.25)

	if got := l.Total(); got != 0.25 {
		t.Errorf("Total() = %v, want 0.25 (contributors report cumulative totals)", got)
	}
}

func TestLedger_total_sums_contributors(t *testing.T) {
	l := NewCostLedger()
	l.Record("frame_extraction", 0.021)
	l.Record("transcription", 0.006)
	l.Record("analysis", 0.045)

	if got := l.Total(); got != 0.072 {
		t.Errorf("Total() = %v, want 0.072", got)
	}
	if got := l.DisplayTotal(); got != 0.07 {
		t.Errorf("DisplayTotal() = %v, want 0.07", got)
	}
}

func TestLedger_negative_amount_panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Record with negative amount should panic")
		}
	}()
	NewCostLedger().Record("x", -1)
}

func TestLedger_breakdown_sorted_copy(t *testing.T) {
	l := NewCostLedger()
	l.Record("transcription", 0.006)
	l.Record("analysis", 0.045)

	lines := l.Breakdown()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Contributor != "analysis" || lines[1].Contributor != "transcription" {
		t.Errorf("breakdown not sorted by contributor: %+v", lines)
	}

	lines[0].Amount = 99
	if got := l.Total(); got != 0.051 {
		t.Errorf("mutating the breakdown must not affect the ledger, Total() = %v", got)
	}
}

func TestExtractionCost_formula(t *testing.T) {
	p := Pricing{UploadFlatFee: 0.015, PerFrameFee: 0.0005}

	got := ExtractionCost(12, p)
	want := 0.021
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ExtractionCost(12) = %v, want %v", got, want)
	}

	if got := ExtractionCost(0, p); got != 0.015 {
		t.Errorf("ExtractionCost(0) = %v, want flat fee 0.015", got)
	}
}

func TestExtractionCost_rounds_to_three_decimals(t *testing.T) {
	p := Pricing{UploadFlatFee: 0.01, PerFrameFee: 0.0003}

	got := ExtractionCost(7, p) // 0.0121 raw
	if got != 0.012 {
		t.Errorf("ExtractionCost(7) = %v, want 0.012", got)
	}
}
