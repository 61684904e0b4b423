package pricing

// FindTax returns the first configured tax rule covering the given country
// and product type, or nil when none applies. Rule order in the settings is
// the precedence order.
func FindTax(settings *Settings, country, productType string) *TaxRule {
	if settings == nil {
		return nil
	}
	for i := range settings.Taxes {
		if settings.Taxes[i].AppliesTo(country, productType) {
			return &settings.Taxes[i]
		}
	}
	return nil
}
