package rag

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// tokens are runs of two or more word characters
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Vector is a sparse, L2-normalized term weight vector sorted by term id.
type Vector []Term

// Term is one non-zero vector component.
type Term struct {
	ID     int
	Weight float64
}

// Dot returns the inner product of two vectors. For normalized vectors this
// is their cosine similarity.
func (v Vector) Dot(o Vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v) && j < len(o) {
		switch {
		case v[i].ID == o[j].ID:
			sum += v[i].Weight * o[j].Weight
			i++
			j++
		case v[i].ID < o[j].ID:
			i++
		default:
			j++
		}
	}
	return sum
}

// Vectorizer is a TF-IDF model: raw term counts weighted by the smoothed
// inverse document frequency ln((1+n)/(1+df)) + 1, then L2-normalized.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// Tokenize lowercases text and returns its tokens with English stop words
// removed.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := englishStopWords[tok]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// FitTransform learns the vocabulary and idf weights from docs and returns
// the vector of every document, in order.
func FitTransform(docs []string) (*Vectorizer, []Vector) {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		tokenized[i] = Tokenize(doc)
		seen := make(map[string]struct{}, len(tokenized[i]))
		for _, tok := range tokenized[i] {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	// sorted vocabulary gives stable term ids
	terms := make([]string, 0, len(df))
	for tok := range df {
		terms = append(terms, tok)
	}
	sort.Strings(terms)

	v := &Vectorizer{
		vocab: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	n := float64(len(docs))
	for id, tok := range terms {
		v.vocab[tok] = id
		v.idf[id] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	vectors := make([]Vector, len(docs))
	for i, toks := range tokenized {
		vectors[i] = v.vectorize(toks)
	}
	return v, vectors
}

// Transform vectorizes text with the fitted vocabulary. Unknown terms are
// ignored, so text sharing nothing with the corpus yields an empty vector.
func (v *Vectorizer) Transform(text string) Vector {
	return v.vectorize(Tokenize(text))
}

// VocabularySize reports the number of distinct indexed terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.vocab)
}

func (v *Vectorizer) vectorize(tokens []string) Vector {
	counts := make(map[int]float64)
	for _, tok := range tokens {
		if id, ok := v.vocab[tok]; ok {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	vec := make(Vector, 0, len(counts))
	var norm float64
	for id, c := range counts {
		w := c * v.idf[id]
		vec = append(vec, Term{ID: id, Weight: w})
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].Weight /= norm
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].ID < vec[j].ID })
	return vec
}
