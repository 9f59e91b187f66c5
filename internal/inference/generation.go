package inference

import (
	"errors"
	"fmt"
)

// Stage names a model-call step.
type Stage string

const (
	StageSchemaLinking Stage = "schema_linking"
	StageSQLGeneration Stage = "sql_generation"
)

// ErrGenerationExhausted is matched by every GenerationExhaustedError.
var ErrGenerationExhausted = errors.New("generation exhausted")

// GenerationExhaustedError reports that no attempt produced usable output.
type GenerationExhaustedError struct {
	Stage    Stage
	Attempts int
	LastRaw  string
	Err      error // last attempt's failure
}

func (e *GenerationExhaustedError) Error() string {
	return fmt.Sprintf("%s: no usable output after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *GenerationExhaustedError) Unwrap() error {
	return e.Err
}

func (e *GenerationExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}

var (
	errEmptyResponse = errors.New("empty model response")
	errNoList        = errors.New("no list found in model response")
	errNoSQL         = errors.New("no SQL statement found in model response")
	errNotGenerated  = errors.New("no SQL generated")
)

// failedSQLPrefix starts the text reported for a failed generation.
const failedSQLPrefix = "-- ERROR: invalid SQL generated"

// Generation is the outcome of SQL generation for one item. Exactly one of
// SQL or Err is set.
type Generation struct {
	SQL      string
	LastRaw  string
	Attempts int
	Err      error
}

// Failed reports whether generation gave up.
func (g *Generation) Failed() bool {
	return g.Err != nil
}

// Text is the recovered SQL, or for a failed generation a SQL comment block
// quoting the last model output.
func (g *Generation) Text() string {
	if g.Failed() {
		return failedSQLPrefix + "\n-- Last output:\n" + g.LastRaw
	}
	return g.SQL
}
