package claims

import "testing"

func TestSatisfiesEmptyPredicate(t *testing.T) {
	if !Satisfies(nil, nil) {
		t.Fatal("nil predicate should always be satisfied")
	}
	if !Satisfies(nil, map[string]any{}) {
		t.Fatal("empty predicate should always be satisfied")
	}
	if !Satisfies(map[string]any{"plan": "member"}, nil) {
		t.Fatal("nil predicate should be satisfied regardless of claims")
	}
}

func TestSatisfiesNilClaims(t *testing.T) {
	required := map[string]any{"plan": "member"}
	if Satisfies(nil, required) {
		t.Fatal("non-empty predicate must fail against nil claims")
	}
}

func TestSatisfiesNestedPath(t *testing.T) {
	claimSet := map[string]any{
		"app_metadata": map[string]any{
			"subscription": map[string]any{"plan": "member"},
		},
	}

	if !Satisfies(claimSet, map[string]any{"app_metadata.subscription.plan": "member"}) {
		t.Fatal("expected nested path to match")
	}
	if Satisfies(claimSet, map[string]any{"app_metadata.subscription.plan": "supporter"}) {
		t.Fatal("mismatched leaf value must fail")
	}
	if Satisfies(claimSet, map[string]any{"app_metadata.billing.plan": "member"}) {
		t.Fatal("missing intermediate segment must fail")
	}
	if Satisfies(claimSet, map[string]any{"app_metadata.subscription.plan.extra": "member"}) {
		t.Fatal("traversing past a scalar leaf must fail")
	}
}

func TestSatisfiesAllKeysMustMatch(t *testing.T) {
	claimSet := map[string]any{
		"role": "editor",
		"app_metadata": map[string]any{
			"subscription": map[string]any{"plan": "member"},
		},
	}

	both := map[string]any{
		"role":                           "editor",
		"app_metadata.subscription.plan": "member",
	}
	if !Satisfies(claimSet, both) {
		t.Fatal("expected both requirements to match")
	}

	oneWrong := map[string]any{
		"role":                           "viewer",
		"app_metadata.subscription.plan": "member",
	}
	if Satisfies(claimSet, oneWrong) {
		t.Fatal("a single failing requirement must fail the whole predicate")
	}
}

func TestSatisfiesZeroValuesArePresent(t *testing.T) {
	claimSet := map[string]any{
		"flags": map[string]any{"beta": false, "credits": float64(0)},
	}

	if !Satisfies(claimSet, map[string]any{"flags.beta": false}) {
		t.Fatal("false claim value is present and must compare equal")
	}
	if !Satisfies(claimSet, map[string]any{"flags.credits": 0}) {
		t.Fatal("zero claim value is present and must compare equal")
	}
	if Satisfies(claimSet, map[string]any{"flags.beta": true}) {
		t.Fatal("false claim value must not satisfy a true requirement")
	}
}

func TestSatisfiesNumericNormalisation(t *testing.T) {
	// JSON decoding yields float64; predicates written in Go often use int.
	claimSet := map[string]any{"tier": float64(2)}
	if !Satisfies(claimSet, map[string]any{"tier": 2}) {
		t.Fatal("int requirement should match float64 claim of equal value")
	}
	if Satisfies(claimSet, map[string]any{"tier": "2"}) {
		t.Fatal("string requirement must not match a numeric claim")
	}
}

func TestSatisfiesNullLeafIsAbsent(t *testing.T) {
	claimSet := map[string]any{"plan": nil}
	if Satisfies(claimSet, map[string]any{"plan": "member"}) {
		t.Fatal("explicit null leaf must be treated as absent")
	}
}
