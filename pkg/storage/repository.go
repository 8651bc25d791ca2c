package storage

import (
	"context"

	"github.com/wwppc/contestd/pkg/contest"
)

// Repository is the persistence surface consumed by contest hosts and the
// grader. Reads return an empty slice, never nil, when nothing matches.
type Repository interface {
	ReadContests(ctx context.Context, filter contest.ContestFilter) ([]contest.Contest, error)
	ReadRounds(ctx context.Context, filter contest.RoundFilter) ([]contest.Round, error)
	ReadProblems(ctx context.Context, filter contest.ProblemFilter) ([]contest.Problem, error)
	ReadSubmissions(ctx context.Context, filter contest.SubmissionFilter) ([]contest.Submission, error)
	// WriteSubmission updates the scores of an existing submission in place.
	// A new submission replaces the team's ungraded attempt at the same
	// problem when overwrite is set, and is kept alongside it otherwise.
	WriteSubmission(ctx context.Context, sub contest.Submission, overwrite bool) error
	// FinishContest moves the contest from active to past registrations of
	// every registered team.
	FinishContest(ctx context.Context, contestID string) error
	// GetAllRegisteredUsers lists members of every team registered for the
	// contest, sorted.
	GetAllRegisteredUsers(ctx context.Context, contestID string) ([]string, error)
	// GetTeamData resolves a team by id, or the team a user belongs to.
	GetTeamData(ctx context.Context, teamOrUser string) (contest.Team, error)
}

// AdminRepository adds the seeding operations used by operators and tests.
type AdminRepository interface {
	Repository
	SaveContest(ctx context.Context, c contest.Contest) error
	SaveRound(ctx context.Context, r contest.Round) error
	SaveProblem(ctx context.Context, p contest.Problem) error
	SaveTeam(ctx context.Context, t contest.Team) error
	RegisterTeam(ctx context.Context, teamID, contestID string) error
}
