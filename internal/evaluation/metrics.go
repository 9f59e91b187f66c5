package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrEmptyBatch is returned by Aggregate when there is nothing to average.
var ErrEmptyBatch = errors.New("evaluation: empty batch")

// Execution is the outcome of running one SQL statement against a database.
// A non-nil Err means the statement failed and Rows must be ignored.
type Execution struct {
	Rows [][]any
	Err  error
}

// Failed reports whether the execution produced no usable result.
func (e Execution) Failed() bool {
	return e.Err != nil
}

// Scores holds the three per-item metrics.
type Scores struct {
	ExactMatch         float64 `json:"em"`
	ExecutionAccuracy  float64 `json:"ex"`
	PartialCorrectness float64 `json:"partial_correctness"`
}

// NormalizeSQL trims the statement, drops trailing terminators, collapses
// whitespace runs and lowercases the result.
func NormalizeSQL(sql string) string {
	s := strings.TrimSpace(sql)
	s = strings.TrimRight(s, ";")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ExactMatch returns 1 when both statements normalize to the same text.
func ExactMatch(gold, pred string) float64 {
	if NormalizeSQL(gold) == NormalizeSQL(pred) {
		return 1
	}
	return 0
}

// ExecutionAccuracy compares the row multisets of two executions. Row order
// is ignored, duplicate counts are not.
func ExecutionAccuracy(gold, pred Execution) float64 {
	if gold.Failed() || pred.Failed() {
		return 0
	}
	if len(gold.Rows) != len(pred.Rows) {
		return 0
	}

	counts := make(map[string]int, len(gold.Rows))
	for _, row := range gold.Rows {
		counts[rowKey(row)]++
	}
	for _, row := range pred.Rows {
		k := rowKey(row)
		if counts[k] == 0 {
			return 0
		}
		counts[k]--
	}
	return 1
}

// PartialCorrectness is the fraction of distinct gold values that also
// appear anywhere in the predicted result.
func PartialCorrectness(gold, pred Execution) float64 {
	if gold.Failed() || pred.Failed() {
		return 0
	}
	goldValues := valueSet(gold.Rows)
	if len(goldValues) == 0 {
		return 0
	}
	predValues := valueSet(pred.Rows)

	hit := 0
	for v := range goldValues {
		if _, ok := predValues[v]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(goldValues))
}

// Evaluate scores one item.
func Evaluate(goldSQL, predSQL string, gold, pred Execution) Scores {
	return Scores{
		ExactMatch:         ExactMatch(goldSQL, predSQL),
		ExecutionAccuracy:  ExecutionAccuracy(gold, pred),
		PartialCorrectness: PartialCorrectness(gold, pred),
	}
}

// Aggregate averages each metric over the batch.
func Aggregate(items []Scores) (Scores, error) {
	if len(items) == 0 {
		return Scores{}, ErrEmptyBatch
	}

	var sum Scores
	for _, s := range items {
		sum.ExactMatch += s.ExactMatch
		sum.ExecutionAccuracy += s.ExecutionAccuracy
		sum.PartialCorrectness += s.PartialCorrectness
	}
	n := float64(len(items))
	return Scores{
		ExactMatch:         sum.ExactMatch / n,
		ExecutionAccuracy:  sum.ExecutionAccuracy / n,
		PartialCorrectness: sum.PartialCorrectness / n,
	}, nil
}

func valueSet(rows [][]any) map[string]struct{} {
	set := make(map[string]struct{})
	for _, row := range rows {
		for _, v := range row {
			set[ValueKey(v)] = struct{}{}
		}
	}
	return set
}

func rowKey(row []any) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(ValueKey(v)))
	}
	return b.String()
}

// ValueKey maps a scalar to a comparable key. Integral numbers share a key
// regardless of their Go type, so 1, int64(1) and 1.0 are the same value.
// Booleans compare as 0 and 1, which is how sqlite stores them.
func ValueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "s:" + x
	case []byte:
		return "s:" + string(x)
	case bool:
		if x {
			return "n:1"
		}
		return "n:0"
	case int:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int8:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int16:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "n:" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case uint:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint8:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint16:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint32:
		return "n:" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "n:" + strconv.FormatUint(x, 10)
	case float32:
		return floatKey(float64(x))
	case float64:
		return floatKey(x)
	case time.Time:
		return "t:" + x.UTC().Format(time.RFC3339Nano)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return "n:" + strconv.FormatInt(i, 10)
		}
		if f, err := x.Float64(); err == nil {
			return floatKey(f)
		}
		return "n:" + x.String()
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func floatKey(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return "n:" + strconv.FormatInt(int64(f), 10)
	}
	return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
}
