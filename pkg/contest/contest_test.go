package contest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wwppc/contestd/pkg/contest"
)

func TestCompletion(t *testing.T) {
	t.Parallel()

	score := func(state contest.ScoreState, subtask int) contest.Score {
		return contest.Score{State: state, Subtask: subtask}
	}

	cases := []struct {
		desc     string
		sub      *contest.Submission
		withhold bool
		want     contest.CompletionState
	}{
		{desc: "no submission", want: contest.NotUploaded},
		{desc: "no submission withheld", withhold: true, want: contest.NotUploaded},
		{desc: "ungraded", sub: &contest.Submission{}, want: contest.Submitted},
		{
			desc:     "graded but withheld",
			sub:      &contest.Submission{Scores: []contest.Score{score(contest.Correct, 0)}},
			withhold: true,
			want:     contest.Uploaded,
		},
		{
			desc: "all correct",
			sub:  &contest.Submission{Scores: []contest.Score{score(contest.Correct, 0), score(contest.Correct, 1)}},
			want: contest.GradedPass,
		},
		{
			desc: "one subtask passes",
			sub: &contest.Submission{Scores: []contest.Score{
				score(contest.Correct, 0), score(contest.Correct, 0),
				score(contest.Correct, 1), score(contest.TimeLimitExceeded, 1),
			}},
			want: contest.GradedPartial,
		},
		{
			desc: "failure within the only subtask",
			sub:  &contest.Submission{Scores: []contest.Score{score(contest.Correct, 0), score(contest.Incorrect, 0)}},
			want: contest.GradedFail,
		},
		{
			desc: "compile error",
			sub:  &contest.Submission{Scores: []contest.Score{score(contest.CompileError, 0)}},
			want: contest.GradedFail,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			got := contest.Completion(tc.sub, tc.withhold)
			assert.Equal(t, tc.want, got, "got %s", got)
		})
	}
}

func TestSubmissionPassed(t *testing.T) {
	t.Parallel()

	assert.False(t, contest.Submission{}.Passed())
	assert.True(t, contest.Submission{Scores: []contest.Score{{State: contest.Correct}}}.Passed())
	assert.False(t, contest.Submission{Scores: []contest.Score{{State: contest.Correct}, {State: contest.RuntimeError}}}.Passed())
}

func TestContestFilter(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := contest.Contest{ID: "c1", Type: "standard", StartTime: start, EndTime: start.Add(2 * time.Hour)}

	cases := []struct {
		desc   string
		filter contest.ContestFilter
		want   bool
	}{
		{desc: "empty filter", want: true},
		{desc: "matching id", filter: contest.ContestFilter{IDs: []string{"c0", "c1"}}, want: true},
		{desc: "other id", filter: contest.ContestFilter{IDs: []string{"c2"}}},
		{desc: "other type", filter: contest.ContestFilter{Type: "practice"}},
		{desc: "at start", filter: contest.ContestFilter{ActiveAt: start}, want: true},
		{desc: "before start", filter: contest.ContestFilter{ActiveAt: start.Add(-time.Nanosecond)}},
		{desc: "at end", filter: contest.ContestFilter{ActiveAt: start.Add(2 * time.Hour)}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.filter.Match(c))
		})
	}
}

func TestSubmissionFilter(t *testing.T) {
	t.Parallel()

	graded := contest.Submission{ID: "s1", Team: "t1", Username: "alice", ProblemID: "p1", Scores: []contest.Score{{State: contest.Correct}}}
	analysis := contest.Submission{ID: "s2", Team: "t1", Username: "bob", ProblemID: "p2", Analysis: true}

	cases := []struct {
		desc   string
		filter contest.SubmissionFilter
		sub    contest.Submission
		want   bool
	}{
		{desc: "empty filter", sub: analysis, want: true},
		{desc: "team", filter: contest.SubmissionFilter{Team: "t2"}, sub: graded},
		{desc: "usernames", filter: contest.SubmissionFilter{Usernames: []string{"alice"}}, sub: graded, want: true},
		{desc: "problems", filter: contest.SubmissionFilter{ProblemIDs: []string{"p1"}}, sub: analysis},
		{desc: "non analysis", filter: contest.SubmissionFilter{Analysis: contest.Bool(false)}, sub: analysis},
		{desc: "analysis", filter: contest.SubmissionFilter{Analysis: contest.Bool(true)}, sub: analysis, want: true},
		{desc: "graded only", filter: contest.SubmissionFilter{Graded: true}, sub: analysis},
		{desc: "graded only matches", filter: contest.SubmissionFilter{Graded: true}, sub: graded, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, tc.filter.Match(tc.sub))
		})
	}
}

func TestExpiredHistory(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	subs := []contest.Submission{
		{ID: "c", Time: base.Add(2 * time.Minute)},
		{ID: "a", Time: base},
		{ID: "d", Time: base.Add(3 * time.Minute)},
		{ID: "b", Time: base.Add(time.Minute)},
	}

	cases := []struct {
		desc string
		keep int
		want []string
	}{
		{desc: "within limit", keep: 4},
		{desc: "drop oldest", keep: 3, want: []string{"a"}},
		{desc: "keep newest", keep: 1, want: []string{"c", "b", "a"}},
		{desc: "keep none", keep: 0, want: []string{"d", "c", "b", "a"}},
		{desc: "unbounded", keep: -1},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			got := contest.ExpiredHistory(subs, tc.keep)
			if tc.want == nil {
				assert.Empty(t, got)

				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSortSubmissionsTiesByID(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	subs := []contest.Submission{{ID: "b", Time: at}, {ID: "c", Time: at.Add(-time.Second)}, {ID: "a", Time: at}}
	contest.SortSubmissions(subs)

	assert.Equal(t, "c", subs[0].ID)
	assert.Equal(t, "a", subs[1].ID)
	assert.Equal(t, "b", subs[2].ID)
}
