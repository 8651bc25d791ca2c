package contest

import (
	"cmp"
	"slices"
	"time"
)

// ContestFilter selects contests. Zero values disable a criterion.
type ContestFilter struct {
	IDs []string
	// ActiveAt selects contests whose [StartTime, EndTime) window contains it.
	ActiveAt time.Time
	Type     string
}

func (f ContestFilter) Match(c Contest) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, c.ID) {
		return false
	}
	if f.Type != "" && f.Type != c.Type {
		return false
	}
	if !f.ActiveAt.IsZero() && (f.ActiveAt.Before(c.StartTime) || !f.ActiveAt.Before(c.EndTime)) {
		return false
	}

	return true
}

type RoundFilter struct {
	IDs     []string
	Contest string
}

func (f RoundFilter) Match(r Round) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}

	return f.Contest == "" || f.Contest == r.Contest
}

type ProblemFilter struct {
	IDs []string
}

func (f ProblemFilter) Match(p Problem) bool {
	return len(f.IDs) == 0 || slices.Contains(f.IDs, p.ID)
}

type SubmissionFilter struct {
	IDs        []string
	Team       string
	Usernames  []string
	ProblemIDs []string
	Analysis   *bool
	// Graded selects only submissions that carry a verdict.
	Graded bool
}

func (f SubmissionFilter) Match(s Submission) bool {
	switch {
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, s.ID):
		return false
	case f.Team != "" && f.Team != s.Team:
		return false
	case len(f.Usernames) > 0 && !slices.Contains(f.Usernames, s.Username):
		return false
	case len(f.ProblemIDs) > 0 && !slices.Contains(f.ProblemIDs, s.ProblemID):
		return false
	case f.Analysis != nil && *f.Analysis != s.Analysis:
		return false
	case f.Graded && !s.Graded():
		return false
	}

	return true
}

// SortSubmissions orders submissions by time, then id.
func SortSubmissions(subs []Submission) {
	slices.SortStableFunc(subs, func(a, b Submission) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})
}

// ExpiredHistory returns the ids of a team's submissions beyond the newest
// keep entries.
func ExpiredHistory(subs []Submission, keep int) []string {
	if keep < 0 || len(subs) <= keep {
		return nil
	}
	sorted := slices.Clone(subs)
	SortSubmissions(sorted)
	slices.Reverse(sorted)

	ids := make([]string, 0, len(sorted)-keep)
	for _, s := range sorted[keep:] {
		ids = append(ids, s.ID)
	}

	return ids
}

// Bool returns a pointer to v, for optional filter fields.
func Bool(v bool) *bool {
	return &v
}
