package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/wwppc/contestd/pkg/contest"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

const (
	contestPrefix    = "contest:"
	roundPrefix      = "round:"
	problemPrefix    = "problem:"
	submissionPrefix = "submission:"
	teamPrefix       = "team:"
	memberPrefix     = "member:"
)

func key(prefix, id string) []byte {
	return []byte(prefix + id)
}

type Repository struct {
	// mu serializes read-modify-write transactions so they never conflict.
	mu         sync.Mutex
	db         *Database
	maxHistory int
}

func NewRepository(db *Database, maxHistory int) *Repository {
	return &Repository{db: db, maxHistory: maxHistory}
}

func read[T any](d *Database, prefix string, match func(T) bool) ([]T, error) {
	out := []T{}
	err := d.db.View(func(txn *badger.Txn) error {
		items, err := scan[T](txn, []byte(prefix))
		if err != nil {
			return err
		}
		for _, item := range items {
			if match(item) {
				out = append(out, item)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *Repository) ReadContests(_ context.Context, filter contest.ContestFilter) ([]contest.Contest, error) {
	return read(r.db, contestPrefix, filter.Match)
}

func (r *Repository) ReadRounds(_ context.Context, filter contest.RoundFilter) ([]contest.Round, error) {
	return read(r.db, roundPrefix, filter.Match)
}

func (r *Repository) ReadProblems(_ context.Context, filter contest.ProblemFilter) ([]contest.Problem, error) {
	return read(r.db, problemPrefix, filter.Match)
}

func (r *Repository) ReadSubmissions(_ context.Context, filter contest.SubmissionFilter) ([]contest.Submission, error) {
	subs, err := read(r.db, submissionPrefix, filter.Match)
	if err != nil {
		return nil, err
	}
	contest.SortSubmissions(subs)

	return subs, nil
}

func (r *Repository) WriteSubmission(_ context.Context, sub contest.Submission, overwrite bool) error {
	if sub.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.db.Update(func(txn *badger.Txn) error {
		var stored contest.Submission
		err := get(txn, key(submissionPrefix, sub.ID), &stored)
		switch {
		case err == nil:
			stored.Scores = slices.Clone(sub.Scores)

			return r.db.set(txn, key(submissionPrefix, sub.ID), stored)
		case !errors.Is(err, pkgerrors.ErrNotFound):
			return err
		}

		all, err := scan[contest.Submission](txn, []byte(submissionPrefix))
		if err != nil {
			return err
		}
		var team []contest.Submission
		for _, s := range all {
			if s.Team != sub.Team {
				continue
			}
			if overwrite && s.ProblemID == sub.ProblemID && !s.Graded() && s.Analysis == sub.Analysis {
				if err := del(txn, key(submissionPrefix, s.ID)); err != nil {
					return err
				}

				continue
			}
			team = append(team, s)
		}

		if err := r.db.set(txn, key(submissionPrefix, sub.ID), sub); err != nil {
			return err
		}
		team = append(team, sub)
		for _, id := range contest.ExpiredHistory(team, r.maxHistory) {
			if err := del(txn, key(submissionPrefix, id)); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Repository) FinishContest(_ context.Context, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.db.Update(func(txn *badger.Txn) error {
		teams, err := scan[contest.Team](txn, []byte(teamPrefix))
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
			if err := r.db.set(txn, key(teamPrefix, t.ID), t); err != nil {
				return err
			}
		}

		return nil
	})
}

func (r *Repository) GetAllRegisteredUsers(_ context.Context, contestID string) ([]string, error) {
	teams, err := read(r.db, teamPrefix, func(t contest.Team) bool { return t.Registered(contestID) })
	if err != nil {
		return nil, err
	}
	users := []string{}
	for _, t := range teams {
		users = append(users, t.Members...)
	}
	slices.Sort(users)

	return slices.Compact(users), nil
}

func (r *Repository) GetTeamData(_ context.Context, teamOrUser string) (contest.Team, error) {
	if teamOrUser == "" {
		return contest.Team{}, pkgerrors.ErrEmptyKey
	}

	var t contest.Team
	err := r.db.db.View(func(txn *badger.Txn) error {
		err := get(txn, key(teamPrefix, teamOrUser), &t)
		if !errors.Is(err, pkgerrors.ErrNotFound) {
			return err
		}
		var teamID string
		if err := get(txn, key(memberPrefix, teamOrUser), &teamID); err != nil {
			return err
		}

		return get(txn, key(teamPrefix, teamID), &t)
	})
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return contest.Team{}, fmt.Errorf("team of %q: %w", teamOrUser, pkgerrors.ErrNotFound)
	case err != nil:
		return contest.Team{}, err
	}

	return t, nil
}

func (r *Repository) save(k []byte, v any) error {
	return r.db.db.Update(func(txn *badger.Txn) error {
		return r.db.set(txn, k, v)
	})
}

func (r *Repository) SaveContest(_ context.Context, c contest.Contest) error {
	return r.save(key(contestPrefix, c.ID), c)
}

func (r *Repository) SaveRound(_ context.Context, rd contest.Round) error {
	return r.save(key(roundPrefix, rd.ID), rd)
}

func (r *Repository) SaveProblem(_ context.Context, p contest.Problem) error {
	return r.save(key(problemPrefix, p.ID), p)
}

func (r *Repository) SaveTeam(_ context.Context, t contest.Team) error {
	if t.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.db.Update(func(txn *badger.Txn) error {
		var prev contest.Team
		switch err := get(txn, key(teamPrefix, t.ID), &prev); {
		case err == nil:
			for _, m := range prev.Members {
				if err := del(txn, key(memberPrefix, m)); err != nil {
					return err
				}
			}
		case !errors.Is(err, pkgerrors.ErrNotFound):
			return err
		}
		for _, m := range t.Members {
			if err := r.db.set(txn, key(memberPrefix, m), t.ID); err != nil {
				return err
			}
		}

		return r.db.set(txn, key(teamPrefix, t.ID), t)
	})
}

func (r *Repository) RegisterTeam(_ context.Context, teamID, contestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.db.Update(func(txn *badger.Txn) error {
		var t contest.Team
		if err := get(txn, key(teamPrefix, teamID), &t); err != nil {
			return fmt.Errorf("team %q: %w", teamID, err)
		}
		if t.Registered(contestID) {
			return nil
		}
		t.Registrations = append(t.Registrations, contestID)

		return r.db.set(txn, key(teamPrefix, t.ID), t)
	})
}
