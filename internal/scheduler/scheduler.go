// Package scheduler picks the queries a research cycle runs.
//
// Coverage is probabilistic: high-tier topics get exactly one random query
// every cycle, and up to CycleSize more queries are drawn uniformly without
// replacement from the remaining topics. There is no fairness tracking between
// cycles.
package scheduler

import (
	"errors"
	"math/rand/v2"
	"slices"

	"github.com/pders01/research-collector/internal/models"
)

// DefaultCycleSize is the number of random fill slots per cycle
const DefaultCycleSize = 2

// ErrScheduleExhausted means no eligible query exists for the cycle
var ErrScheduleExhausted = errors.New("no eligible queries")

// Options control one selection
type Options struct {
	// CycleSize is the number of random slots on top of the high-tier queries.
	// Negative values are treated as zero.
	CycleSize int
	// ForceFull marks every entry as must-run-full
	ForceFull bool
	// Topics restricts the pool to these topic ids when non-empty
	Topics []string
}

// Select returns this cycle's entries: high-tier entries first in catalog
// order, then the random fill. It returns ErrScheduleExhausted together with an
// empty slice when nothing is eligible.
func Select(rng *rand.Rand, topics []models.Topic, opts Options) ([]models.SelectionEntry, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	pool := Eligible(topics, opts.Topics)
	if len(pool) == 0 {
		return []models.SelectionEntry{}, ErrScheduleExhausted
	}

	entries := make([]models.SelectionEntry, 0, len(pool)+opts.CycleSize)
	var rest []models.Query

	for _, t := range pool {
		if t.Importance == models.ImportanceHigh {
			q := t.Queries[rng.IntN(len(t.Queries))]
			entries = append(entries, models.SelectionEntry{
				Query:       models.Query{TopicID: t.ID, Text: q},
				MustRunFull: true,
			})
			continue
		}
		for _, q := range t.Queries {
			rest = append(rest, models.Query{TopicID: t.ID, Text: q})
		}
	}

	fill := max(opts.CycleSize, 0)
	fill = min(fill, len(rest))

	// Partial Fisher-Yates: the first fill elements are a uniform sample
	for i := 0; i < fill; i++ {
		j := i + rng.IntN(len(rest)-i)
		rest[i], rest[j] = rest[j], rest[i]
		entries = append(entries, models.SelectionEntry{Query: rest[i]})
	}

	if opts.ForceFull {
		for i := range entries {
			entries[i].MustRunFull = true
		}
	}

	if len(entries) == 0 {
		return entries, ErrScheduleExhausted
	}
	return entries, nil
}

// Eligible returns the topics that may contribute queries: those with at
// least one query, restricted to ids when ids is non-empty. Catalog order is
// preserved.
func Eligible(topics []models.Topic, ids []string) []models.Topic {
	var out []models.Topic
	for _, t := range topics {
		if len(t.Queries) == 0 {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Queries flattens entries into their queries
func Queries(entries []models.SelectionEntry) []models.Query {
	out := make([]models.Query, len(entries))
	for i, e := range entries {
		out[i] = e.Query
	}
	return out
}
