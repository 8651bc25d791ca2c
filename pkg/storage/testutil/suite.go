package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwppc/contestd/pkg/contest"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
	"github.com/wwppc/contestd/pkg/storage"
)

// RunRepositorySuite exercises the behaviour every storage backend shares.
// Records use fresh ids so the suite can run against a shared database.
func RunRepositorySuite(t *testing.T, repo storage.AdminRepository, maxHistory int) {
	t.Helper()

	t.Run("contests", func(t *testing.T) { testContests(t, repo) })
	t.Run("rounds and problems", func(t *testing.T) { testRoundsProblems(t, repo) })
	t.Run("write submission", func(t *testing.T) { testWriteSubmission(t, repo) })
	t.Run("submission filters", func(t *testing.T) { testSubmissionFilters(t, repo) })
	t.Run("submission history", func(t *testing.T) { testHistory(t, repo, maxHistory) })
	t.Run("teams", func(t *testing.T) { testTeams(t, repo) })
	t.Run("finish contest", func(t *testing.T) { testFinishContest(t, repo) })
}

func testContests(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	c := TestContest(NewID("contest"), NewID("round"), NewID("round"))
	c.Exclusions = []string{"alice"}
	require.NoError(t, repo.SaveContest(ctx, c))

	later := TestContest(NewID("contest"))
	later.StartTime = Epoch.Add(24 * time.Hour)
	later.EndTime = Epoch.Add(27 * time.Hour)
	require.NoError(t, repo.SaveContest(ctx, later))

	cases := []struct {
		desc   string
		filter contest.ContestFilter
		want   []contest.Contest
	}{
		{
			desc:   "by id",
			filter: contest.ContestFilter{IDs: []string{c.ID}},
			want:   []contest.Contest{c},
		},
		{
			desc:   "active at start",
			filter: contest.ContestFilter{IDs: []string{c.ID, later.ID}, ActiveAt: Epoch},
			want:   []contest.Contest{c},
		},
		{
			desc:   "inactive at end",
			filter: contest.ContestFilter{IDs: []string{c.ID, later.ID}, ActiveAt: c.EndTime},
			want:   []contest.Contest{},
		},
		{
			desc:   "by type",
			filter: contest.ContestFilter{IDs: []string{c.ID}, Type: "other"},
			want:   []contest.Contest{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := repo.ReadContests(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	c.Public = false
	require.NoError(t, repo.SaveContest(ctx, c), "saving twice updates in place")
	got, err := repo.ReadContests(ctx, contest.ContestFilter{IDs: []string{c.ID}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Public)
}

func testRoundsProblems(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	contestID := NewID("contest")
	p1, p2 := TestProblem(NewID("problem")), TestProblem(NewID("problem"))
	p2.Solution = nil
	r1 := TestRound(NewID("round"), contestID, 1, p1.ID)
	r2 := TestRound(NewID("round"), contestID, 2, p2.ID)
	for _, p := range []contest.Problem{p1, p2} {
		require.NoError(t, repo.SaveProblem(ctx, p))
	}
	for _, r := range []contest.Round{r1, r2} {
		require.NoError(t, repo.SaveRound(ctx, r))
	}

	rounds, err := repo.ReadRounds(ctx, contest.RoundFilter{Contest: contestID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []contest.Round{r1, r2}, rounds)

	rounds, err = repo.ReadRounds(ctx, contest.RoundFilter{IDs: []string{r2.ID}})
	require.NoError(t, err)
	assert.Equal(t, []contest.Round{r2}, rounds)

	problems, err := repo.ReadProblems(ctx, contest.ProblemFilter{IDs: []string{p1.ID, p2.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []contest.Problem{p1, p2}, problems)

	problems, err = repo.ReadProblems(ctx, contest.ProblemFilter{IDs: []string{NewID("missing")}})
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func testWriteSubmission(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	team, problem := NewID("team"), NewID("problem")
	first := TestSubmission(NewID("sub"), team, "alice", problem, Epoch)
	second := TestSubmission(NewID("sub"), team, "bob", problem, Epoch.Add(time.Minute))
	read := func() []contest.Submission {
		subs, err := repo.ReadSubmissions(ctx, contest.SubmissionFilter{Team: team})
		require.NoError(t, err)

		return subs
	}

	require.NoError(t, repo.WriteSubmission(ctx, first, true))
	require.NoError(t, repo.WriteSubmission(ctx, second, true))
	subs := read()
	require.Len(t, subs, 1, "overwrite replaces the ungraded attempt")
	assert.Equal(t, second.ID, subs[0].ID)

	second.Scores = Correct()
	require.NoError(t, repo.WriteSubmission(ctx, second, true))
	subs = read()
	require.Len(t, subs, 1)
	assert.Equal(t, Correct(), subs[0].Scores)
	assert.True(t, subs[0].Time.Equal(second.Time))

	third := TestSubmission(NewID("sub"), team, "alice", problem, Epoch.Add(2*time.Minute))
	require.NoError(t, repo.WriteSubmission(ctx, third, true))
	assert.Len(t, read(), 2, "graded attempts survive overwrite")

	fourth := TestSubmission(NewID("sub"), team, "alice", problem, Epoch.Add(3*time.Minute))
	require.NoError(t, repo.WriteSubmission(ctx, fourth, false))
	assert.Len(t, read(), 3, "direct writes keep earlier attempts")

	err := repo.WriteSubmission(ctx, TestSubmission("", team, "alice", problem, Epoch), false)
	assert.ErrorIs(t, err, pkgerrors.ErrEmptyKey)
}

func testSubmissionFilters(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	team, p1, p2 := NewID("team"), NewID("problem"), NewID("problem")
	graded := TestSubmission(NewID("sub"), team, "carol", p1, Epoch.Add(2*time.Minute))
	graded.Scores = Correct()
	pending := TestSubmission(NewID("sub"), team, "dave", p2, Epoch.Add(time.Minute))
	analysis := TestSubmission(NewID("sub"), team, "carol", p1, Epoch.Add(3*time.Minute))
	analysis.Analysis = true
	for _, s := range []contest.Submission{graded, pending, analysis} {
		require.NoError(t, repo.WriteSubmission(ctx, s, false))
	}

	cases := []struct {
		desc   string
		filter contest.SubmissionFilter
		want   []string
	}{
		{
			desc:   "team ordered by time",
			filter: contest.SubmissionFilter{Team: team},
			want:   []string{pending.ID, graded.ID, analysis.ID},
		},
		{
			desc:   "usernames",
			filter: contest.SubmissionFilter{Team: team, Usernames: []string{"dave"}},
			want:   []string{pending.ID},
		},
		{
			desc:   "problems",
			filter: contest.SubmissionFilter{Team: team, ProblemIDs: []string{p1}},
			want:   []string{graded.ID, analysis.ID},
		},
		{
			desc:   "excluding analysis",
			filter: contest.SubmissionFilter{Team: team, Analysis: contest.Bool(false)},
			want:   []string{pending.ID, graded.ID},
		},
		{
			desc:   "analysis only",
			filter: contest.SubmissionFilter{Team: team, Analysis: contest.Bool(true)},
			want:   []string{analysis.ID},
		},
		{
			desc:   "graded only",
			filter: contest.SubmissionFilter{Team: team, Graded: true},
			want:   []string{graded.ID},
		},
		{
			desc:   "by id",
			filter: contest.SubmissionFilter{IDs: []string{graded.ID}},
			want:   []string{graded.ID},
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			subs, err := repo.ReadSubmissions(ctx, tc.filter)
			require.NoError(t, err)
			ids := make([]string, len(subs))
			for i, s := range subs {
				ids[i] = s.ID
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func testHistory(t *testing.T, repo storage.AdminRepository, maxHistory int) {
	ctx := context.Background()
	team, other := NewID("team"), NewID("team")
	var ids []string
	for i := range maxHistory + 2 {
		s := TestSubmission(NewID("sub"), team, "erin", NewID("problem"), Epoch.Add(time.Duration(i)*time.Minute))
		ids = append(ids, s.ID)
		require.NoError(t, repo.WriteSubmission(ctx, s, false))
	}
	require.NoError(t, repo.WriteSubmission(ctx, TestSubmission(NewID("sub"), other, "frank", NewID("problem"), Epoch), false))

	subs, err := repo.ReadSubmissions(ctx, contest.SubmissionFilter{Team: team})
	require.NoError(t, err)
	require.Len(t, subs, maxHistory)
	assert.Equal(t, ids[2], subs[0].ID, "oldest submissions are purged first")

	subs, err = repo.ReadSubmissions(ctx, contest.SubmissionFilter{Team: other})
	require.NoError(t, err)
	assert.Len(t, subs, 1, "history is bounded per team")
}

func testTeams(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	contestID := NewID("contest")
	alice, bob := NewID("alice"), NewID("bob")
	team := TestTeam(NewID("team"), alice, bob)
	require.NoError(t, repo.SaveTeam(ctx, team))

	cases := []struct {
		desc string
		key  string
		err  error
	}{
		{desc: "by team id", key: team.ID},
		{desc: "by member", key: bob},
		{desc: "unknown", key: NewID("nobody"), err: pkgerrors.ErrNotFound},
		{desc: "empty", key: "", err: pkgerrors.ErrEmptyKey},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			got, err := repo.GetTeamData(ctx, tc.key)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, team.ID, got.ID)
			assert.Equal(t, team.Name, got.Name)
			assert.ElementsMatch(t, team.Members, got.Members)
		})
	}

	require.NoError(t, repo.RegisterTeam(ctx, team.ID, contestID))
	require.NoError(t, repo.RegisterTeam(ctx, team.ID, contestID), "registration is idempotent")
	assert.ErrorIs(t, repo.RegisterTeam(ctx, NewID("team"), contestID), pkgerrors.ErrNotFound)

	got, err := repo.GetTeamData(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{contestID}, got.Registrations)

	users, err := repo.GetAllRegisteredUsers(ctx, contestID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice, bob}, users)

	users, err = repo.GetAllRegisteredUsers(ctx, NewID("contest"))
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testFinishContest(t *testing.T, repo storage.AdminRepository) {
	ctx := context.Background()
	contestID, keep := NewID("contest"), NewID("contest")
	team := TestTeam(NewID("team"), NewID("grace"))
	require.NoError(t, repo.SaveTeam(ctx, team))
	require.NoError(t, repo.RegisterTeam(ctx, team.ID, contestID))
	require.NoError(t, repo.RegisterTeam(ctx, team.ID, keep))

	require.NoError(t, repo.FinishContest(ctx, contestID))
	require.NoError(t, repo.FinishContest(ctx, contestID))

	got, err := repo.GetTeamData(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, got.Registrations)
	assert.Equal(t, []string{contestID}, got.PastRegistrations)

	users, err := repo.GetAllRegisteredUsers(ctx, contestID)
	require.NoError(t, err)
	assert.Empty(t, users)
}
