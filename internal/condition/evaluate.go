package condition

import (
	"math"
	"strconv"
	"strings"
)

// Evaluate walks the tree against ctx and returns the verdict. It is pure:
// no I/O, deterministic for a given (node, ctx) pair.
//
// Compound semantics: All is true iff every child is true (vacuously true
// when empty); Any is true iff at least one child is true (vacuously false
// when empty).
func Evaluate(n Node, ctx map[string]any) bool {
	return eval(n, ctx, nil)
}

// TraceEntry records the outcome of one evaluated node, leaf or compound,
// in post-order. Used by rule audits and the simulate endpoint.
type TraceEntry struct {
	Condition any  `json:"condition"`
	Result    bool `json:"result"`
}

// EvaluateTrace evaluates like Evaluate but also returns the per-node
// outcome trail. Compound children are always fully evaluated so the trace
// is complete (no short-circuiting).
func EvaluateTrace(n Node, ctx map[string]any) (bool, []TraceEntry) {
	trace := make([]TraceEntry, 0, 4)
	result := eval(n, ctx, &trace)
	return result, trace
}

func eval(n Node, ctx map[string]any, trace *[]TraceEntry) bool {
	var result bool

	switch v := n.(type) {
	case Leaf:
		result = evalLeaf(v, ctx)
	case All:
		result = true
		for _, c := range v.Children {
			ok := eval(c, ctx, trace)
			result = result && ok
		}
	case Any:
		result = false
		for _, c := range v.Children {
			ok := eval(c, ctx, trace)
			result = result || ok
		}
	default:
		result = false
	}

	if trace != nil {
		*trace = append(*trace, TraceEntry{Condition: toWire(n), Result: result})
	}
	return result
}

func evalLeaf(l Leaf, ctx map[string]any) bool {
	left, found := resolve(ctx, l.Field)

	switch l.Op {
	case OpEq:
		return strictEqual(left, l.Value)
	case OpNeq:
		return !strictEqual(left, l.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(l.Op, left, l.Value)
	case OpIncludes:
		return includes(left, l.Value)
	case OpExcludes:
		// Asymmetric on purpose: a value that is neither a list nor a
		// string is not treated as "excluded", so malformed data never
		// satisfies an exclusion.
		return excludes(left, l.Value)
	case OpExists:
		return found && left != nil
	case OpMissing:
		return !found || left == nil
	default:
		return false
	}
}

// resolve walks a dot-separated path through nested objects. Any missing or
// non-object segment makes the whole path unresolved.
func resolve(ctx map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = ctx
	for _, seg := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// strictEqual compares scalars only: numbers by value, strings and bools
// exactly, nil to nil. Lists and objects never compare equal, mirroring
// reference identity in the stored rule documents.
func strictEqual(left, right any) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	if ln, lok := asNumber(left); lok {
		rn, rok := asNumber(right)
		return rok && ln == rn
	}

	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	default:
		return false
	}
}

// asNumber reports whether v is a number, without coercing other types.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// toNumber coerces for the ordering operators: numbers pass through,
// numeric strings parse, bools map to 0/1. Everything else is NaN, and any
// comparison involving NaN is false.
func toNumber(v any) float64 {
	if n, ok := asNumber(v); ok {
		return n
	}

	switch t := v.(type) {
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return n
	case bool:
		if t {
			return 1
		}
		return 0
	}
	return math.NaN()
}

func compareNumeric(op Op, left, right any) bool {
	l, r := toNumber(left), toNumber(right)
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}

	switch op {
	case OpGt:
		return l > r
	case OpGte:
		return l >= r
	case OpLt:
		return l < r
	case OpLte:
		return l <= r
	}
	return false
}

// includes checks list membership when the resolved value is a list, or
// substring containment (of the stringified comparison value) when it is a
// string. Any other resolved type is false.
func includes(left, right any) bool {
	switch l := left.(type) {
	case []any:
		for _, item := range l {
			if strictEqual(item, right) {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(l, stringify(right))
	}
	return false
}

func excludes(left, right any) bool {
	switch l := left.(type) {
	case []any:
		return !includes(left, right)
	case string:
		return !strings.Contains(l, stringify(right))
	}
	return false
}

// stringify renders a comparison value for substring checks.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	}
	if n, ok := asNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}
