// Package datastore loads the automobile dataset once and serves it read-only.
package datastore

import (
	"context"
	"errors"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

type yearSpan struct {
	min, max int
}

// Store holds the immutable dataset and a few precomputed lookups
type Store struct {
	source        string
	records       []models.CarRecord
	minYear       int
	maxYear       int
	manufacturers []string
	spans         map[string]yearSpan
}

// Load reads src completely. Either the full dataset is returned or a *LoadError.
func Load(ctx context.Context, src Source) (*Store, error) {
	records, err := src.Records(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrSourceUnreachable) {
			err = unreachable(ctxErr)
		}
		return nil, &LoadError{Source: src.Name(), Err: err}
	}

	s, err := NewStore(src.Name(), records)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	return s, nil
}

// NewStore indexes already-parsed records
func NewStore(source string, records []models.CarRecord) (*Store, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	s := &Store{
		source:  source,
		records: records,
		spans:   make(map[string]yearSpan),
	}

	for i, rec := range records {
		if i == 0 || rec.ModelYear < s.minYear {
			s.minYear = rec.ModelYear
		}
		if i == 0 || rec.ModelYear > s.maxYear {
			s.maxYear = rec.ModelYear
		}

		span, seen := s.spans[rec.Manufacturer]
		if !seen {
			s.manufacturers = append(s.manufacturers, rec.Manufacturer)
			span = yearSpan{min: rec.ModelYear, max: rec.ModelYear}
		}
		if rec.ModelYear < span.min {
			span.min = rec.ModelYear
		}
		if rec.ModelYear > span.max {
			span.max = rec.ModelYear
		}
		s.spans[rec.Manufacturer] = span
	}
	return s, nil
}

// All returns the dataset. The slice is shared; callers must not modify it.
func (s *Store) All() []models.CarRecord {
	return s.records
}

// Len is the number of records
func (s *Store) Len() int {
	return len(s.records)
}

// Source names where the data came from
func (s *Store) Source() string {
	return s.source
}

// YearBounds returns the smallest and largest model year
func (s *Store) YearBounds() (int, int) {
	return s.minYear, s.maxYear
}

// Manufacturers lists manufacturers in first-occurrence order
func (s *Store) Manufacturers() []string {
	out := make([]string, len(s.manufacturers))
	copy(out, s.manufacturers)
	return out
}

// YearsFor returns the model-year span covered by the given manufacturers.
// Unknown names are ignored; if none are known the range is unset.
func (s *Store) YearsFor(manufacturers ...string) models.YearRange {
	r := models.Unset()
	for _, m := range manufacturers {
		span, ok := s.spans[m]
		if !ok {
			continue
		}
		if !r.IsSet() {
			r = models.NewYearRange(span.min, span.max)
			continue
		}
		if span.min < r.Min {
			r.Min = span.min
		}
		if span.max > r.Max {
			r.Max = span.max
		}
	}
	return r
}
