package pricing

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNumberUnmarshal(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
		set  bool
	}{
		{"integer", `20`, 20, true},
		{"float", `7.5`, 7.5, true},
		{"string integer", `"1900"`, 1900, true},
		{"string decimal", `"19.00"`, 19, true},
		{"padded string", `" 15 "`, 15, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var n Number
			if err := json.Unmarshal([]byte(tc.in), &n); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if n.IsSet() != tc.set {
				t.Fatalf("IsSet() = %v, want %v", n.IsSet(), tc.set)
			}
			if got, _ := n.Float64(); got != tc.want {
				t.Errorf("Float64() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNumberUnmarshalRejectsGarbage(t *testing.T) {
	for _, in := range []string{`"abc"`, `"12,50"`, `{}`, `true`} {
		var n Number
		if err := json.Unmarshal([]byte(in), &n); err == nil {
			t.Errorf("expected error for %s", in)
		}
	}
}

func TestNumberInt64(t *testing.T) {
	var n Number
	if err := json.Unmarshal([]byte(`"2490"`), &n); err != nil {
		t.Fatal(err)
	}
	got, ok := n.Int64()
	if !ok || got != 2490 {
		t.Fatalf("Int64() = %d, %v; want 2490, true", got, ok)
	}

	if err := json.Unmarshal([]byte(`24.9`), &n); err != nil {
		t.Fatal(err)
	}
	if _, ok := n.Int64(); ok {
		t.Fatal("fractional value must not convert to int64")
	}
}

func TestDiscountFixedFor(t *testing.T) {
	d := Discount{Fixed: []FixedAmount{
		{Amount: "15.00", Currency: "USD"},
		{Amount: "10.50", Currency: "EUR"},
	}}

	got, err := d.FixedFor("USD")
	if err != nil || got != 1500 {
		t.Fatalf("FixedFor(USD) = %d, %v; want 1500", got, err)
	}
	got, err = d.FixedFor("EUR")
	if err != nil || got != 1050 {
		t.Fatalf("FixedFor(EUR) = %d, %v; want 1050", got, err)
	}
	got, err = d.FixedFor("GBP")
	if err != nil || got != 0 {
		t.Fatalf("FixedFor(GBP) = %d, %v; want 0 without error", got, err)
	}
}

func TestDiscountFixedForMalformedAmount(t *testing.T) {
	d := Discount{Fixed: []FixedAmount{{Amount: "ten dollars", Currency: "USD"}}}
	if _, err := d.FixedFor("USD"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDiscountValidFor(t *testing.T) {
	d := Discount{ProductTypes: []string{"Book"}, Products: []string{"sku-1"}}
	if !d.ValidFor("Book", "sku-1") {
		t.Fatal("expected discount to apply to a matching type and SKU")
	}
	if d.ValidFor("E-Book", "sku-1") {
		t.Fatal("type mismatch must reject the discount")
	}
	if d.ValidFor("Book", "sku-2") {
		t.Fatal("SKU mismatch must reject the discount")
	}
	if !(Discount{}).ValidFor("anything", "any-sku") {
		t.Fatal("unscoped discount must apply to everything")
	}
}
