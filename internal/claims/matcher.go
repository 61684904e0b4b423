// Package claims evaluates identity claim sets against discount
// eligibility predicates.
//
// A predicate maps dotted paths ("app_metadata.subscription.plan") to the
// scalar value the claim set must carry at that path. Every entry must match
// for the predicate to be satisfied.
package claims

import (
	"reflect"
	"strings"
)

// Satisfies reports whether claimSet meets every requirement in required.
// An empty or nil predicate is always satisfied; a non-empty predicate can
// never be satisfied by a nil claim set.
func Satisfies(claimSet map[string]any, required map[string]any) bool {
	if len(required) == 0 {
		return true
	}
	if claimSet == nil {
		return false
	}
	for path, expected := range required {
		value, ok := lookup(claimSet, path)
		if !ok || !valueEqual(value, expected) {
			return false
		}
	}
	return true
}

// lookup walks claimSet along the dot-separated path. It distinguishes
// "absent" from "present with a zero value": a claim holding 0 or false is
// still a present leaf and is returned for comparison.
func lookup(claimSet map[string]any, path string) (any, bool) {
	current := any(claimSet)
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := node[segment]
		if !ok || value == nil {
			return nil, false
		}
		current = value
	}
	return current, true
}

func valueEqual(got, expected any) bool {
	if g, ok := asFloat(got); ok {
		e, ok := asFloat(expected)
		return ok && g == e
	}
	if _, ok := asFloat(expected); ok {
		return false
	}
	return reflect.DeepEqual(got, expected)
}

// asFloat normalises numeric kinds so that a JSON-decoded float64 claim
// matches an int predicate value written in Go.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
