package evaluation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

const tolerance = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestNormalizeSQL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT x FROM t;", "select x from t"},
		{"  select\tx\n FROM   t ;;", "select x from t"},
		{"", ""},
		{"SELECT 'A  B' FROM t", "select 'a b' from t"},
	}
	for _, tt := range tests {
		if got := NormalizeSQL(tt.in); got != tt.want {
			t.Errorf("NormalizeSQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExactMatch(t *testing.T) {
	if got := ExactMatch("SELECT x FROM t;", "select x from t"); got != 1 {
		t.Errorf("expected 1.0 for equivalent text, got %v", got)
	}
	if got := ExactMatch("SELECT x FROM t", "SELECT y FROM t"); got != 0 {
		t.Errorf("expected 0.0 for different columns, got %v", got)
	}
}

func TestExecutionAccuracy(t *testing.T) {
	failed := Execution{Err: errors.New("no such table: t")}

	tests := []struct {
		name string
		gold Execution
		pred Execution
		want float64
	}{
		{
			name: "order insensitive",
			gold: Execution{Rows: [][]any{{int64(1), "a"}, {int64(2), "b"}}},
			pred: Execution{Rows: [][]any{{int64(2), "b"}, {int64(1), "a"}}},
			want: 1,
		},
		{
			name: "duplicate counts matter",
			gold: Execution{Rows: [][]any{{int64(1)}, {int64(1)}}},
			pred: Execution{Rows: [][]any{{int64(1)}, {int64(2)}}},
			want: 0,
		},
		{
			name: "different sizes",
			gold: Execution{Rows: [][]any{{int64(1)}}},
			pred: Execution{Rows: [][]any{{int64(1)}, {int64(1)}}},
			want: 0,
		},
		{
			name: "integral float equals int",
			gold: Execution{Rows: [][]any{{int64(3)}}},
			pred: Execution{Rows: [][]any{{3.0}}},
			want: 1,
		},
		{
			name: "bytes equal string",
			gold: Execution{Rows: [][]any{{"abc"}}},
			pred: Execution{Rows: [][]any{{[]byte("abc")}}},
			want: 1,
		},
		{
			name: "both empty",
			gold: Execution{Rows: [][]any{}},
			pred: Execution{},
			want: 1,
		},
		{name: "gold failed", gold: failed, pred: Execution{Rows: [][]any{{int64(1)}}}, want: 0},
		{name: "pred failed", gold: Execution{Rows: [][]any{{int64(1)}}}, pred: failed, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExecutionAccuracy(tt.gold, tt.pred); got != tt.want {
				t.Errorf("ExecutionAccuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPartialCorrectness(t *testing.T) {
	gold := Execution{Rows: [][]any{{int64(1)}, {int64(2)}, {int64(3)}}}
	pred := Execution{Rows: [][]any{{int64(2), int64(3)}, {int64(4)}}}

	if got := PartialCorrectness(gold, pred); !approxEqual(got, 2.0/3.0) {
		t.Errorf("PartialCorrectness() = %v, want 2/3", got)
	}

	if got := PartialCorrectness(Execution{Rows: [][]any{}}, pred); got != 0 {
		t.Errorf("empty gold should score 0, got %v", got)
	}
	if got := PartialCorrectness(gold, Execution{Err: errors.New("boom")}); got != 0 {
		t.Errorf("failed prediction should score 0, got %v", got)
	}

	// duplicates in gold count once
	dup := Execution{Rows: [][]any{{"x"}, {"x"}, {"y"}}}
	if got := PartialCorrectness(dup, Execution{Rows: [][]any{{"x"}}}); !approxEqual(got, 0.5) {
		t.Errorf("PartialCorrectness() with duplicates = %v, want 0.5", got)
	}
}

func TestEvaluate(t *testing.T) {
	gold := Execution{Rows: [][]any{{int64(1)}, {int64(2)}}}
	pred := Execution{Rows: [][]any{{int64(2)}, {int64(1)}}}

	got := Evaluate("SELECT id FROM t", "select id from t ;", gold, pred)
	want := Scores{ExactMatch: 1, ExecutionAccuracy: 1, PartialCorrectness: 1}
	if got != want {
		t.Errorf("Evaluate() = %+v, want %+v", got, want)
	}
}

func TestAggregate(t *testing.T) {
	items := []Scores{
		{ExactMatch: 1, ExecutionAccuracy: 1, PartialCorrectness: 1},
		{ExactMatch: 0, ExecutionAccuracy: 0, PartialCorrectness: 0},
		{ExactMatch: 1, ExecutionAccuracy: 0, PartialCorrectness: 0.5},
	}

	mean, err := Aggregate(items)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if !approxEqual(mean.ExactMatch, 2.0/3.0) {
		t.Errorf("ExactMatch mean = %v, want 2/3", mean.ExactMatch)
	}
	if !approxEqual(mean.ExecutionAccuracy, 1.0/3.0) {
		t.Errorf("ExecutionAccuracy mean = %v, want 1/3", mean.ExecutionAccuracy)
	}
	if !approxEqual(mean.PartialCorrectness, 0.5) {
		t.Errorf("PartialCorrectness mean = %v, want 0.5", mean.PartialCorrectness)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if _, err := Aggregate(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Aggregate(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestValueKey(t *testing.T) {
	tests := []struct {
		a, b  any
		equal bool
	}{
		{int64(1), 1.0, true},
		{true, int64(1), true},
		{1.5, 1.5, true},
		{1.5, int64(1), false},
		{"1", int64(1), false},
		{nil, "", false},
		{nil, nil, true},
		{json.Number("9007199254740993"), int64(9007199254740993), true},
		{json.Number("9007199254740993"), int64(9007199254740992), false},
		{json.Number("2.5"), 2.5, true},
		{json.Number("3"), 3.0, true},
	}
	for _, tt := range tests {
		if got := ValueKey(tt.a) == ValueKey(tt.b); got != tt.equal {
			t.Errorf("ValueKey(%#v) == ValueKey(%#v) = %v, want %v", tt.a, tt.b, got, tt.equal)
		}
	}
}
