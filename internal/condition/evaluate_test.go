package condition

import (
	"encoding/json"
	"testing"
)

func mustParse(t *testing.T, raw string) Node {
	t.Helper()
	n, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse(%s): %v", raw, err)
	}
	return n
}

func ctxJSON(t *testing.T, raw string) map[string]any {
	t.Helper()
	var ctx map[string]any
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		t.Fatalf("bad context %s: %v", raw, err)
	}
	return ctx
}

func TestEvaluate_Operators(t *testing.T) {
	t.Parallel()

	ctx := ctxJSON(t, `{
		"payload": {
			"amount": 150000,
			"amountStr": "150000",
			"status": "open",
			"tags": ["vip", "billing"],
			"nested": {"deep": {"flag": true}},
			"nothing": null
		}
	}`)

	cases := []struct {
		name string
		cond string
		want bool
	}{
		{"gt match", `{"field":"payload.amount","op":"gt","value":100000}`, true},
		{"gt no match", `{"field":"payload.amount","op":"gt","value":200000}`, false},
		{"gt numeric string coerces", `{"field":"payload.amountStr","op":"gt","value":100000}`, true},
		{"gte boundary", `{"field":"payload.amount","op":"gte","value":150000}`, true},
		{"lt", `{"field":"payload.amount","op":"lt","value":200000}`, true},
		{"lte boundary", `{"field":"payload.amount","op":"lte","value":150000}`, true},
		{"non-numeric is NaN", `{"field":"payload.status","op":"gt","value":0}`, false},
		{"NaN never lt either", `{"field":"payload.status","op":"lt","value":0}`, false},
		{"eq string", `{"field":"payload.status","op":"eq","value":"open"}`, true},
		{"eq no cross-type coercion", `{"field":"payload.amountStr","op":"eq","value":150000}`, false},
		{"neq", `{"field":"payload.status","op":"neq","value":"closed"}`, true},
		{"includes list member", `{"field":"payload.tags","op":"includes","value":"vip"}`, true},
		{"includes list absent", `{"field":"payload.tags","op":"includes","value":"hr"}`, false},
		{"includes substring", `{"field":"payload.status","op":"includes","value":"pe"}`, true},
		{"includes stringifies number", `{"field":"payload.amountStr","op":"includes","value":1500}`, true},
		{"includes wrong type", `{"field":"payload.amount","op":"includes","value":1}`, false},
		{"excludes list", `{"field":"payload.tags","op":"excludes","value":"hr"}`, true},
		{"excludes substring", `{"field":"payload.status","op":"excludes","value":"zz"}`, true},
		{"excludes wrong type stays false", `{"field":"payload.amount","op":"excludes","value":1}`, false},
		{"exists", `{"field":"payload.nested.deep.flag","op":"exists"}`, true},
		{"exists null is missing", `{"field":"payload.nothing","op":"exists"}`, false},
		{"missing null", `{"field":"payload.nothing","op":"missing"}`, true},
		{"missing absent path", `{"field":"payload.no.such.path","op":"missing"}`, true},
		{"missing through scalar segment", `{"field":"payload.amount.cents","op":"missing"}`, true},
		{"eq against absent is false", `{"field":"payload.ghost","op":"eq","value":1}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(mustParse(t, tc.cond), ctx)
			if got != tc.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvaluate_ExistsMissingAreNegations(t *testing.T) {
	t.Parallel()

	ctx := ctxJSON(t, `{"payload":{"a":1,"b":null,"c":"x"}}`)

	for _, field := range []string{"payload.a", "payload.b", "payload.c", "payload.absent"} {
		exists := Evaluate(Leaf{Field: field, Op: OpExists}, ctx)
		missing := Evaluate(Leaf{Field: field, Op: OpMissing}, ctx)
		if exists == missing {
			t.Errorf("field %q: exists=%v missing=%v, want exact negation", field, exists, missing)
		}
	}
}

func TestEvaluate_EqNeqAreNegations(t *testing.T) {
	t.Parallel()

	ctx := ctxJSON(t, `{"payload":{"n":5,"s":"x","b":true}}`)

	leaves := []Leaf{
		{Field: "payload.n", Op: OpEq, Value: float64(5)},
		{Field: "payload.n", Op: OpEq, Value: float64(6)},
		{Field: "payload.s", Op: OpEq, Value: "x"},
		{Field: "payload.b", Op: OpEq, Value: true},
		{Field: "payload.b", Op: OpEq, Value: "true"},
	}

	for _, l := range leaves {
		eq := Evaluate(l, ctx)
		neg := l
		neg.Op = OpNeq
		neq := Evaluate(neg, ctx)
		if eq == neq {
			t.Errorf("leaf %+v: eq=%v neq=%v, want exact negation", l, eq, neq)
		}
	}
}

func TestEvaluate_CompoundVacuousTruth(t *testing.T) {
	t.Parallel()

	ctx := map[string]any{}

	if !Evaluate(All{}, ctx) {
		t.Error("all([]) = false, want vacuously true")
	}
	if Evaluate(Any{}, ctx) {
		t.Error("any([]) = true, want vacuously false")
	}
}

func TestEvaluate_CompoundComposition(t *testing.T) {
	t.Parallel()

	ctx := ctxJSON(t, `{"payload":{"amount":500,"region":"eu"}}`)

	cases := []struct {
		name string
		cond string
		want bool
	}{
		{"all true", `{"all":[{"field":"payload.amount","op":"gt","value":100},{"field":"payload.region","op":"eq","value":"eu"}]}`, true},
		{"all one false", `{"all":[{"field":"payload.amount","op":"gt","value":1000},{"field":"payload.region","op":"eq","value":"eu"}]}`, false},
		{"any one true", `{"any":[{"field":"payload.amount","op":"gt","value":1000},{"field":"payload.region","op":"eq","value":"eu"}]}`, true},
		{"any none true", `{"any":[{"field":"payload.amount","op":"gt","value":1000},{"field":"payload.region","op":"eq","value":"us"}]}`, false},
		{"nested", `{"all":[{"any":[{"field":"payload.region","op":"eq","value":"us"},{"field":"payload.region","op":"eq","value":"eu"}]},{"field":"payload.amount","op":"lte","value":500}]}`, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(mustParse(t, tc.cond), ctx)
			if got != tc.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	n := mustParse(t, `{"any":[{"field":"payload.a","op":"gt","value":1},{"field":"payload.b","op":"includes","value":"x"}]}`)
	ctx := ctxJSON(t, `{"payload":{"a":3,"b":["x","y"]}}`)

	first := Evaluate(n, ctx)
	for range 10 {
		if Evaluate(n, ctx) != first {
			t.Fatal("Evaluate is not deterministic")
		}
	}
}

func TestEvaluateTrace_RecordsEveryNode(t *testing.T) {
	t.Parallel()

	n := mustParse(t, `{"all":[{"field":"payload.a","op":"gt","value":1},{"field":"payload.b","op":"exists"}]}`)
	ctx := ctxJSON(t, `{"payload":{"a":5}}`)

	matched, trace := EvaluateTrace(n, ctx)
	if matched {
		t.Error("matched = true, want false (payload.b absent)")
	}

	// Two leaves plus the root compound.
	if len(trace) != 3 {
		t.Fatalf("trace length = %d, want 3", len(trace))
	}
	if !trace[0].Result {
		t.Error("first leaf should be true")
	}
	if trace[1].Result {
		t.Error("second leaf should be false")
	}
	if trace[2].Result {
		t.Error("root should be false")
	}
}
