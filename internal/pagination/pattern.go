package pagination

import (
	"context"

	"github.com/rs/zerolog"

	"listing-crawler/pkg/models"
)

// Pattern describes where pre-existing keys sit within one page.
type Pattern string

const (
	PatternAllNew                Pattern = "all_new"
	PatternAllDuplicate          Pattern = "all_duplicate"
	PatternStartDuplicateThenNew Pattern = "start_duplicate_then_new"
	PatternNewThenDuplicate      Pattern = "new_then_duplicate"
	PatternMixed                 Pattern = "mixed"
)

// Classification is the pattern of a page plus the indexes found pre-existing.
type Classification struct {
	Pattern          Pattern
	DuplicateIndexes []int
}

// ClassifyFlags labels a page from its per-item existence flags, in page order.
func ClassifyFlags(exists []bool) Classification {
	c := Classification{DuplicateIndexes: []int{}}
	for i, ok := range exists {
		if ok {
			c.DuplicateIndexes = append(c.DuplicateIndexes, i)
		}
	}

	total := len(exists)
	switch len(c.DuplicateIndexes) {
	case 0:
		c.Pattern = PatternAllNew
		return c
	case total:
		c.Pattern = PatternAllDuplicate
		return c
	}

	// The half boundary is real-valued: for odd lengths the middle index
	// sits below total/2 and belongs to the first half.
	half := float64(total) / 2
	var first, second int
	for _, i := range c.DuplicateIndexes {
		if float64(i) < half {
			first++
		} else {
			second++
		}
	}

	switch {
	case first > 0 && second == 0:
		c.Pattern = PatternStartDuplicateThenNew
	case first == 0 && second > 0:
		c.Pattern = PatternNewThenDuplicate
	default:
		c.Pattern = PatternMixed
	}
	return c
}

// Classify checks every listing against the oracle in document order and
// labels the page. A failed check counts as "not pre-existing".
func Classify(ctx context.Context, listings []models.Listing, oracle DuplicateOracle, logger zerolog.Logger) Classification {
	exists := make([]bool, len(listings))
	for i, l := range listings {
		ok, err := oracle.Exists(ctx, l.Key())
		if err != nil {
			logger.Warn().Err(err).Str("key", l.Key()).Msg("Duplicate check failed")
			continue
		}
		exists[i] = ok
	}
	return ClassifyFlags(exists)
}
