package validate

import "flarewatch/fsp/round"

// selectLatest returns the submission with the greatest Tx.TimestampS whose
// timestamp lies in the half-open range [startInclS, endExclS); ties are
// broken by last insertion (later entries in subs win). Returns false if no
// submission qualifies.
func selectLatest[T any](subs []round.Submission[T], startInclS, endExclS int64) (round.Submission[T], bool) {
	var best round.Submission[T]
	found := false
	for _, s := range subs {
		ts := s.Tx.TimestampS
		if ts < startInclS || ts >= endExclS {
			continue
		}
		if !found || ts >= best.Tx.TimestampS {
			best = s
			found = true
		}
	}
	return best, found
}
