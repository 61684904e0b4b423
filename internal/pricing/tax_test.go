package pricing

import "testing"

func TestFindTaxFirstMatchWins(t *testing.T) {
	settings := &Settings{Taxes: []TaxRule{
		{Percentage: 7, Countries: []string{"Germany"}, ProductTypes: []string{"book"}},
		{Percentage: 19, Countries: []string{"Germany"}},
	}}

	got := FindTax(settings, "Germany", "book")
	if got == nil || got.Percentage != 7 {
		t.Fatalf("expected the 7%% book rule, got %+v", got)
	}

	// The second rule has no product type restriction and catches the rest.
	got = FindTax(settings, "Germany", "ebook")
	if got == nil || got.Percentage != 19 {
		t.Fatalf("expected the 19%% fallback rule, got %+v", got)
	}
}

func TestFindTaxUnrestrictedDimensions(t *testing.T) {
	settings := &Settings{Taxes: []TaxRule{{Percentage: 5}}}
	if got := FindTax(settings, "Anywhere", "anything"); got == nil || got.Percentage != 5 {
		t.Fatalf("a rule with no restrictions should match everything, got %+v", got)
	}
}

func TestFindTaxNoMatch(t *testing.T) {
	settings := &Settings{Taxes: []TaxRule{
		{Percentage: 7, Countries: []string{"Germany"}, ProductTypes: []string{"book"}},
	}}
	if got := FindTax(settings, "France", "book"); got != nil {
		t.Fatalf("expected no match for France, got %+v", got)
	}
	if got := FindTax(settings, "Germany", "ebook"); got != nil {
		t.Fatalf("expected no match for ebook, got %+v", got)
	}
	if got := FindTax(nil, "Germany", "book"); got != nil {
		t.Fatalf("nil settings must resolve no tax, got %+v", got)
	}
}
