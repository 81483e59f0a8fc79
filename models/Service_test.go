package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestQuoteBaseOnly(t *testing.T) {
	s := Service{BasePrice: dec("150.00")}
	got := s.Quote(5, nil)
	if !got.Equal(dec("150.00")) {
		t.Fatalf("base-only quote = %s, want 150.00", got)
	}
}

func TestQuoteWithHourly(t *testing.T) {
	s := Service{
		BasePrice:   dec("100.00"),
		HourlyPrice: decimal.NullDecimal{Decimal: dec("20.00"), Valid: true},
	}
	got := s.Quote(3, nil)
	if !got.Equal(dec("160.00")) {
		t.Fatalf("quote = %s, want 160.00", got)
	}
}

func TestQuoteFullFormula(t *testing.T) {
	headcount := 80
	s := Service{
		BasePrice:      dec("500.00"),
		HourlyPrice:    decimal.NullDecimal{Decimal: dec("50.00"), Valid: true},
		PerPersonPrice: decimal.NullDecimal{Decimal: dec("12.50"), Valid: true},
	}
	// 500 + 50*4 + 12.50*80 = 1700
	got := s.Quote(4, &headcount)
	if !got.Equal(dec("1700.00")) {
		t.Fatalf("quote = %s, want 1700.00", got)
	}
}

func TestQuotePerPersonNeedsHeadcount(t *testing.T) {
	s := Service{
		BasePrice:      dec("200.00"),
		PerPersonPrice: decimal.NullDecimal{Decimal: dec("10.00"), Valid: true},
	}
	got := s.Quote(2, nil)
	if !got.Equal(dec("200.00")) {
		t.Fatalf("per-person without headcount must not charge, got %s", got)
	}
}

func TestDepositFor(t *testing.T) {
	s := Service{
		RequiresDeposit: true,
		DepositPercent:  decimal.NullDecimal{Decimal: dec("30"), Valid: true},
	}
	deposit := s.DepositFor(dec("1700.00"))
	if !deposit.Valid || !deposit.Decimal.Equal(dec("510.00")) {
		t.Fatalf("deposit = %v, want 510.00", deposit)
	}

	free := Service{}
	if free.DepositFor(dec("1000")).Valid {
		t.Fatal("no-deposit listing must return invalid NullDecimal")
	}
}

func TestSnapshotPricing(t *testing.T) {
	s := Service{
		BasePrice:   dec("100.00"),
		HourlyPrice: decimal.NullDecimal{Decimal: dec("25.00"), Valid: true},
	}
	item := CartItem{DurationHours: 4}
	item.SnapshotPricing(&s)

	if !item.PriceTotal.Equal(dec("200.00")) {
		t.Fatalf("snapshot total = %s, want 200.00", item.PriceTotal)
	}

	// Later listing edits must not leak into the snapshot.
	s.BasePrice = dec("999.00")
	if !item.BasePrice.Equal(dec("100.00")) {
		t.Fatalf("snapshot base changed to %s", item.BasePrice)
	}
}
