package nav

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCurrentNAVKnownFund(t *testing.T) {
	provider := DefaultProvider()

	price, known := provider.CurrentNAV("SBI Bluechip Fund")
	if !known {
		t.Fatal("expected SBI Bluechip Fund to be known")
	}
	if !price.Equal(decimal.NewFromFloat(45.67)) {
		t.Errorf("expected 45.67, got %s", price)
	}
}

func TestCurrentNAVFallback(t *testing.T) {
	provider := DefaultProvider()

	price, known := provider.CurrentNAV("No Such Fund")
	if known {
		t.Fatal("expected unknown fund")
	}
	if !price.Equal(decimal.NewFromFloat(50.00)) {
		t.Errorf("expected fallback 50.00, got %s", price)
	}
}

func TestCurrentNAVCaseInsensitive(t *testing.T) {
	provider := DefaultProvider()

	price, known := provider.CurrentNAV("sbi bluechip fund")
	if !known || !price.Equal(decimal.NewFromFloat(45.67)) {
		t.Errorf("expected case-insensitive match at 45.67, got %s known=%v", price, known)
	}
}

func TestSetNAV(t *testing.T) {
	provider := NewStaticProvider(nil, 50.00)
	provider.SetNAV("New Fund", decimal.NewFromFloat(12.34))

	price, known := provider.CurrentNAV("New Fund")
	if !known || !price.Equal(decimal.NewFromFloat(12.34)) {
		t.Errorf("expected 12.34 known, got %s known=%v", price, known)
	}
}
