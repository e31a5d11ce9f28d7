// Package value implements JSON pointer resolution and the partial-order
// comparison used by include filters and group sort keys (spec.md §4.4, §9).
package value

import (
	"strconv"
	"strings"

	"github.com/rowhpc/row/rowerrors"
)

// Comparison is one of the five ordering operators spec.md §4.4 names.
type Comparison string

const (
	LessThan           Comparison = "<"
	LessThanOrEqualTo  Comparison = "<="
	EqualTo            Comparison = "=="
	GreaterThanOrEqual Comparison = ">="
	GreaterThan        Comparison = ">"
)

// Pointer resolves a standard JSON pointer fragment ("/foo/0/bar") against a
// decoded JSON value (the result of json.Unmarshal into interface{}). The
// empty pointer selects the whole value.
func Pointer(root interface{}, pointer string) (interface{}, bool) {
	if pointer == "" {
		return root, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	tokens := strings.Split(pointer[1:], "/")
	cur := root
	for _, tok := range tokens {
		tok = unescapeToken(tok)
		switch v := cur.(type) {
		case map[string]interface{}:
			next, ok := v[tok]
			if !ok {
				return nil, false
			}
			cur = next
		case []interface{}:
			idx, err := strconv.Atoi(tok)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// MustPointer resolves pointer against root, returning a JSONPointerNotFound
// *rowerrors.Error when it does not resolve.
func MustPointer(root interface{}, pointer string) (interface{}, error) {
	v, ok := Pointer(root, pointer)
	if !ok {
		return nil, rowerrors.JSONPointerNotFound(pointer)
	}
	return v, nil
}

func unescapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~1", "/")
	tok = strings.ReplaceAll(tok, "~0", "~")
	return tok
}

// order is the result of a partial-order comparison.
type order int

const (
	orderLess order = iota
	orderEqual
	orderGreater
)

// partialCompare implements the same-type partial order spec.md §4.4
// describes: strings/bools/nulls/equal-length arrays compare lexicographically,
// numbers compare as integers when both are integers else as floats (NaN
// yields no ordering), mixed types yield no ordering.
func partialCompare(a, b interface{}) (order, bool) {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return orderEqual, true
		}
		return 0, false
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return orderEqual, true
		}
		if !av && bv {
			return orderLess, true
		}
		return orderGreater, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return compareOrdered(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return compareNumbers(av, bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return 0, false
		}
		for i := range av {
			o, ok := partialCompare(av[i], bv[i])
			if !ok {
				return 0, false
			}
			if o != orderEqual {
				return o, true
			}
		}
		return orderEqual, true
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok {
			return 0, false
		}
		if len(av) != len(bv) {
			return 0, false
		}
		keys := make([]string, 0, len(av))
		for k := range av {
			keys = append(keys, k)
		}
		sortStrings(keys)
		for _, k := range keys {
			bvv, ok := bv[k]
			if !ok {
				return 0, false
			}
			o, ok := partialCompare(av[k], bvv)
			if !ok {
				return 0, false
			}
			if o != orderEqual {
				return o, true
			}
		}
		return orderEqual, true
	}
	return 0, false
}

func compareNumbers(a, b float64) (order, bool) {
	aIsInt := a == float64(int64(a))
	bIsInt := b == float64(int64(b))
	if aIsInt && bIsInt {
		ai, bi := int64(a), int64(b)
		switch {
		case ai < bi:
			return orderLess, true
		case ai > bi:
			return orderGreater, true
		default:
			return orderEqual, true
		}
	}
	if a != a || b != b { // NaN
		return 0, false
	}
	switch {
	case a < b:
		return orderLess, true
	case a > b:
		return orderGreater, true
	default:
		return orderEqual, true
	}
}

func compareOrdered(a, b string) order {
	switch {
	case a < b:
		return orderLess
	case a > b:
		return orderGreater
	default:
		return orderEqual
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Evaluate applies op to (a, b), returning (result, true) when a and b are
// comparable and (false, false) when they are not (the caller should surface
// rowerrors.CannotCompare()).
func Evaluate(op Comparison, a, b interface{}) (bool, bool) {
	o, ok := partialCompare(a, b)
	if !ok {
		return false, false
	}
	switch op {
	case LessThan:
		return o == orderLess, true
	case LessThanOrEqualTo:
		return o == orderLess || o == orderEqual, true
	case EqualTo:
		return o == orderEqual, true
	case GreaterThanOrEqual:
		return o == orderGreater || o == orderEqual, true
	case GreaterThan:
		return o == orderGreater, true
	}
	return false, false
}

// Less reports whether a sorts before b under the partial order, for use as
// a sort comparator; incomparable values are treated as equal (stable, per
// spec.md's "tie-break unstably" — callers needing strict errors should call
// partialCompare via Evaluate with EqualTo/LessThan directly instead).
func Less(a, b interface{}) bool {
	o, ok := partialCompare(a, b)
	return ok && o == orderLess
}

// Equal reports whether a and b compare equal under the partial order.
func Equal(a, b interface{}) bool {
	o, ok := partialCompare(a, b)
	return ok && o == orderEqual
}
