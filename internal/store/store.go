package store

import (
	"sort"
	"time"

	"load_forecaster/internal/dataerr"
	"load_forecaster/internal/model"
)

// Store owns the observation table, kept sorted by timestamp.
// Stages mutate row values in place through Rows and shrink the table with
// Retain; the time index itself is never rewritten.
type Store struct {
	rows []model.Observation
}

// New takes ownership of rows and sorts them by timestamp. Duplicate
// timestamps keep their input order.
func New(rows []model.Observation) *Store {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	return &Store{rows: rows}
}

// Rows returns the backing slice. Writes to row values are visible to the store.
func (s *Store) Rows() []model.Observation {
	return s.rows
}

// Len returns the number of rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// TimeRange returns the first and last timestamps.
func (s *Store) TimeRange() (model.TimeRange, bool) {
	if len(s.rows) == 0 {
		return model.TimeRange{}, false
	}
	return model.TimeRange{
		Start: s.rows[0].Timestamp,
		End:   s.rows[len(s.rows)-1].Timestamp,
	}, true
}

// IndexOf returns the index of the first row at exactly t.
func (s *Store) IndexOf(t time.Time) (int, bool) {
	idx := sort.Search(len(s.rows), func(i int) bool {
		return !s.rows[i].Timestamp.Before(t)
	})
	if idx < len(s.rows) && s.rows[idx].Timestamp.Equal(t) {
		return idx, true
	}
	return 0, false
}

// Bounds returns the half-open index range [lo, hi) of rows within tr (inclusive).
func (s *Store) Bounds(tr model.TimeRange) (lo, hi int) {
	lo = sort.Search(len(s.rows), func(i int) bool {
		return !s.rows[i].Timestamp.Before(tr.Start)
	})
	hi = sort.Search(len(s.rows), func(i int) bool {
		return s.rows[i].Timestamp.After(tr.End)
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Between returns a copy of the rows within tr, inclusive on both ends.
func (s *Store) Between(tr model.TimeRange) []model.Observation {
	lo, hi := s.Bounds(tr)
	if lo >= hi {
		return nil
	}
	result := make([]model.Observation, hi-lo)
	copy(result, s.rows[lo:hi])
	return result
}

// Retain keeps only the rows for which keep returns true and reports how
// many were dropped.
func (s *Store) Retain(keep func(model.Observation) bool) int {
	kept := s.rows[:0]
	for _, r := range s.rows {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	dropped := len(s.rows) - len(kept)
	s.rows = kept
	return dropped
}

// CheckFrequency verifies that consecutive timestamps are exactly step apart.
func CheckFrequency(timestamps []time.Time, step time.Duration) error {
	for i := 1; i < len(timestamps); i++ {
		prev, cur := timestamps[i-1], timestamps[i]
		if d := cur.Sub(prev); d != step {
			kind := "gap"
			if d <= 0 {
				kind = "duplicate"
			}
			return dataerr.DataIntegrity("non-uniform time step (%s)", kind).
				WithContext("after", prev.Format(time.RFC3339)).
				WithContext("at", cur.Format(time.RFC3339)).
				WithContext("step", d.String())
		}
	}
	return nil
}

// CheckFrequency verifies the store's index against step.
func (s *Store) CheckFrequency(step time.Duration) error {
	ts := make([]time.Time, len(s.rows))
	for i, r := range s.rows {
		ts[i] = r.Timestamp
	}
	return CheckFrequency(ts, step)
}

// CheckGaps is CheckFrequency with repeated timestamps collapsed, so only
// missing ticks are reported.
func (s *Store) CheckGaps(step time.Duration) error {
	ts := make([]time.Time, 0, len(s.rows))
	for _, r := range s.rows {
		if n := len(ts); n > 0 && ts[n-1].Equal(r.Timestamp) {
			continue
		}
		ts = append(ts, r.Timestamp)
	}
	return CheckFrequency(ts, step)
}
