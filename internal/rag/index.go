// Package rag ranks training examples for few-shot prompting. Ranking
// combines TF-IDF cosine similarity of the questions with a small bonus for
// question words that name tables or columns of the example's database.
package rag

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"ragsql/internal/dataset"
)

var (
	// ErrNotReady is returned by Retrieve before Initialize succeeds.
	ErrNotReady = errors.New("rag: index not initialized")
	// ErrInvalidArgument is returned for a k outside [0, training set size].
	ErrInvalidArgument = errors.New("rag: invalid argument")
)

const (
	schemaWeight = 0.1
	columnWeight = 1.0
	tableWeight  = 0.5
)

// Corpus supplies the data the index is built from.
type Corpus interface {
	TrainingExamples() ([]dataset.Example, error)
	Schemas() (dataset.SchemaIndex, error)
}

// Result is one retrieved example.
type Result struct {
	Question string  `json:"question"`
	SQL      string  `json:"sql"`
	DBID     string  `json:"db_id"`
	Score    float64 `json:"score"`
}

// Index is immutable once Initialize returns nil and safe for concurrent
// reads from then on.
type Index struct {
	corpus Corpus
	log    *slog.Logger

	mu    sync.Mutex
	ready atomic.Bool

	examples   []dataset.Example
	schemas    dataset.SchemaIndex
	vectorizer *Vectorizer
	vectors    []Vector
}

// NewIndex returns an index over corpus. Initialize must be called before
// Retrieve.
func NewIndex(corpus Corpus, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{corpus: corpus, log: log}
}

// Initialize loads the corpus and fits the vector model. It is a no-op once
// the index is ready; after a failure it may be called again.
func (idx *Index) Initialize() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.ready.Load() {
		return nil
	}

	examples, err := idx.corpus.TrainingExamples()
	if err != nil {
		return fmt.Errorf("load training examples: %w", err)
	}
	schemas, err := idx.corpus.Schemas()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	questions := make([]string, len(examples))
	for i, ex := range examples {
		questions[i] = ex.Question
	}
	vectorizer, vectors := FitTransform(questions)

	idx.examples = examples
	idx.schemas = schemas
	idx.vectorizer = vectorizer
	idx.vectors = vectors
	idx.ready.Store(true)

	idx.log.Info("built TF-IDF index",
		"questions", len(examples),
		"terms", vectorizer.VocabularySize(),
		"databases", len(schemas))
	return nil
}

// Ready reports whether Initialize has completed.
func (idx *Index) Ready() bool {
	return idx.ready.Load()
}

// Size is the number of indexed training examples.
func (idx *Index) Size() int {
	if !idx.ready.Load() {
		return 0
	}
	return len(idx.examples)
}

// SchemaScore counts distinct whitespace-separated question words that
// name a column (1.0 each) or table (0.5 each) of database dbID. Unknown
// databases score 0.
func (idx *Index) SchemaScore(question, dbID string) float64 {
	schema, ok := idx.schemas[dbID]
	if !ok {
		return 0
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(question) {
		words[strings.ToLower(w)] = struct{}{}
	}

	var score float64
	for w := range words {
		if _, ok := schema.Columns[w]; ok {
			score += columnWeight
		}
		if _, ok := schema.Tables[w]; ok {
			score += tableWeight
		}
	}
	return score
}

type ranked struct {
	pos   int
	score float64
}

// Retrieve returns the k training examples most similar to question, best
// first. Equal scores keep corpus order.
func (idx *Index) Retrieve(question string, k int) ([]Result, error) {
	if !idx.ready.Load() {
		return nil, ErrNotReady
	}
	if k < 0 || k > len(idx.examples) {
		return nil, fmt.Errorf("%w: k=%d, training set has %d examples", ErrInvalidArgument, k, len(idx.examples))
	}

	query := idx.vectorizer.Transform(question)
	schemaScores := make(map[string]float64)

	ranking := make([]ranked, len(idx.examples))
	for i, ex := range idx.examples {
		schema, ok := schemaScores[ex.DBID]
		if !ok {
			schema = idx.SchemaScore(question, ex.DBID)
			schemaScores[ex.DBID] = schema
		}
		ranking[i] = ranked{pos: i, score: query.Dot(idx.vectors[i]) + schemaWeight*schema}
	}

	sort.SliceStable(ranking, func(a, b int) bool {
		return ranking[a].score > ranking[b].score
	})

	results := make([]Result, k)
	for i, r := range ranking[:k] {
		ex := idx.examples[r.pos]
		results[i] = Result{
			Question: ex.Question,
			SQL:      ex.SQL,
			DBID:     ex.DBID,
			Score:    math.Round(r.score*1e4) / 1e4,
		}
	}
	return results, nil
}
