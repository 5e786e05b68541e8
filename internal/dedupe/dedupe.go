// Package dedupe collapses near-identical findings using term-vector cosine
// similarity over their headlines.
package dedupe

import (
	"math"
	"strings"
	"unicode"

	"github.com/pders01/research-collector/internal/models"
)

// DefaultThreshold is the similarity at or above which two headlines are the same item
const DefaultThreshold = 0.8

// Vector is a sparse term-frequency vector
type Vector map[string]float64

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "in": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "were": true, "will": true,
	"with": true,
}

// Terms builds the term vector of text. Case and punctuation are ignored.
func Terms(text string) Vector {
	v := make(Vector)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		v[w]++
	}
	return v
}

// Magnitude is the Euclidean norm of v
func (v Vector) Magnitude() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns a value in [0, 1] for term vectors. An empty
// vector is similar to nothing.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}

	dot := 0.0
	for term, x := range a {
		dot += x * b[term]
	}

	sim := dot / (a.Magnitude() * b.Magnitude())
	// Clamp floating point drift
	if sim > 1.0 {
		sim = 1.0
	}
	return sim
}

// Similar reports whether two headlines describe the same thing
func Similar(a, b string, threshold float64) bool {
	va, vb := Terms(a), Terms(b)
	if len(va) == 0 || len(vb) == 0 {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return CosineSimilarity(va, vb) >= threshold
}

// Items keeps the first of every group of similar headlines, in input order.
// Items with an empty headline are dropped.
func Items(items []models.FindingItem, threshold float64) []models.FindingItem {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var (
		kept    []models.FindingItem
		vectors []Vector
	)
	for _, item := range items {
		headline := strings.TrimSpace(item.Headline)
		if headline == "" {
			continue
		}
		v := Terms(headline)

		dup := false
		for i, kv := range vectors {
			if len(v) == 0 || len(kv) == 0 {
				if strings.EqualFold(headline, strings.TrimSpace(kept[i].Headline)) {
					dup = true
					break
				}
				continue
			}
			if CosineSimilarity(v, kv) >= threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, item)
		vectors = append(vectors, v)
	}
	return kept
}
