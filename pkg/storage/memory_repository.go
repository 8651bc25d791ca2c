package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/wwppc/contestd/pkg/contest"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

type memoryRepo struct {
	// mu serializes compound operations across the record stores.
	mu          sync.Mutex
	contests    Storage
	rounds      Storage
	problems    Storage
	submissions Storage
	teams       Storage
	maxHistory  int
}

var _ AdminRepository = (*memoryRepo)(nil)

func NewMemoryRepository(maxHistory int) AdminRepository {
	return &memoryRepo{
		contests:    NewInMemoryStorage(),
		rounds:      NewInMemoryStorage(),
		problems:    NewInMemoryStorage(),
		submissions: NewInMemoryStorage(),
		teams:       NewInMemoryStorage(),
		maxHistory:  maxHistory,
	}
}

func list[T any](ctx context.Context, s Storage, match func(T) bool, clone func(T) T) ([]T, error) {
	values, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(values))
	for _, v := range values {
		item, ok := v.(T)
		if !ok {
			return nil, pkgerrors.ErrInvalidData
		}
		if match(item) {
			out = append(out, clone(item))
		}
	}

	return out, nil
}

func (r *memoryRepo) ReadContests(ctx context.Context, filter contest.ContestFilter) ([]contest.Contest, error) {
	return list(ctx, r.contests, filter.Match, contest.Contest.Clone)
}

func (r *memoryRepo) ReadRounds(ctx context.Context, filter contest.RoundFilter) ([]contest.Round, error) {
	return list(ctx, r.rounds, filter.Match, contest.Round.Clone)
}

func (r *memoryRepo) ReadProblems(ctx context.Context, filter contest.ProblemFilter) ([]contest.Problem, error) {
	return list(ctx, r.problems, filter.Match, contest.Problem.Clone)
}

func (r *memoryRepo) ReadSubmissions(ctx context.Context, filter contest.SubmissionFilter) ([]contest.Submission, error) {
	subs, err := list(ctx, r.submissions, filter.Match, contest.Submission.Clone)
	if err != nil {
		return nil, err
	}
	contest.SortSubmissions(subs)

	return subs, nil
}

func (r *memoryRepo) WriteSubmission(ctx context.Context, sub contest.Submission, overwrite bool) error {
	if sub.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.submissions.Get(ctx, sub.ID)
	switch {
	case err == nil:
		stored, ok := existing.(contest.Submission)
		if !ok {
			return pkgerrors.ErrInvalidData
		}
		stored.Scores = slices.Clone(sub.Scores)

		return r.submissions.Update(ctx, sub.ID, stored)
	case !errors.Is(err, pkgerrors.ErrNotFound):
		return err
	}

	teamSubs, err := list(ctx, r.submissions, contest.SubmissionFilter{Team: sub.Team}.Match, contest.Submission.Clone)
	if err != nil {
		return err
	}
	if overwrite {
		teamSubs = slices.DeleteFunc(teamSubs, func(s contest.Submission) bool {
			if s.ProblemID != sub.ProblemID || s.Graded() || s.Analysis != sub.Analysis {
				return false
			}
			_ = r.submissions.Delete(ctx, s.ID)

			return true
		})
	}

	if err := r.submissions.Create(ctx, sub.ID, sub.Clone()); err != nil {
		return err
	}
	teamSubs = append(teamSubs, sub)

	for _, id := range contest.ExpiredHistory(teamSubs, r.maxHistory) {
		if err := r.submissions.Delete(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

func (r *memoryRepo) teamList(ctx context.Context) ([]contest.Team, error) {
	return list(ctx, r.teams, func(contest.Team) bool { return true }, contest.Team.Clone)
}

func (r *memoryRepo) FinishContest(ctx context.Context, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	teams, err := r.teamList(ctx)
	if err != nil {
		return err
	}
	for _, t := range teams {
		if !t.Registered(contestID) {
			continue
		}
		t.Registrations = slices.DeleteFunc(t.Registrations, func(id string) bool { return id == contestID })
		if !slices.Contains(t.PastRegistrations, contestID) {
			t.PastRegistrations = append(t.PastRegistrations, contestID)
		}
		if err := r.teams.Update(ctx, t.ID, t); err != nil {
			return err
		}
	}

	return nil
}

func (r *memoryRepo) GetAllRegisteredUsers(ctx context.Context, contestID string) ([]string, error) {
	teams, err := r.teamList(ctx)
	if err != nil {
		return nil, err
	}
	users := []string{}
	for _, t := range teams {
		if t.Registered(contestID) {
			users = append(users, t.Members...)
		}
	}
	slices.Sort(users)

	return slices.Compact(users), nil
}

func (r *memoryRepo) GetTeamData(ctx context.Context, teamOrUser string) (contest.Team, error) {
	if teamOrUser == "" {
		return contest.Team{}, pkgerrors.ErrEmptyKey
	}
	if v, err := r.teams.Get(ctx, teamOrUser); err == nil {
		t, ok := v.(contest.Team)
		if !ok {
			return contest.Team{}, pkgerrors.ErrInvalidData
		}

		return t.Clone(), nil
	}

	teams, err := r.teamList(ctx)
	if err != nil {
		return contest.Team{}, err
	}
	for _, t := range teams {
		if t.HasMember(teamOrUser) {
			return t, nil
		}
	}

	return contest.Team{}, fmt.Errorf("team of %q: %w", teamOrUser, pkgerrors.ErrNotFound)
}

func (r *memoryRepo) SaveContest(ctx context.Context, c contest.Contest) error {
	return r.contests.Upsert(ctx, c.ID, c.Clone())
}

func (r *memoryRepo) SaveRound(ctx context.Context, rd contest.Round) error {
	return r.rounds.Upsert(ctx, rd.ID, rd.Clone())
}

func (r *memoryRepo) SaveProblem(ctx context.Context, p contest.Problem) error {
	return r.problems.Upsert(ctx, p.ID, p.Clone())
}

func (r *memoryRepo) SaveTeam(ctx context.Context, t contest.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.teams.Upsert(ctx, t.ID, t.Clone())
}

func (r *memoryRepo) RegisterTeam(ctx context.Context, teamID, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, err := r.teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	t, ok := v.(contest.Team)
	if !ok {
		return pkgerrors.ErrInvalidData
	}
	if t.Registered(contestID) {
		return nil
	}
	t = t.Clone()
	t.Registrations = append(t.Registrations, contestID)

	return r.teams.Update(ctx, t.ID, t)
}
