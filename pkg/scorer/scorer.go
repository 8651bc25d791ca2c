// Package scorer aggregates judged submissions into per-round and overall
// standings. A Scorer performs no I/O and is not safe for concurrent use; the
// owning contest host serializes access to it.
package scorer

import (
	"cmp"
	"encoding/json"
	"errors"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/wwppc/contestd/pkg/contest"
)

// WrongAttemptPenalty is added to a problem slot for every failing submission.
const WrongAttemptPenalty = 10 * time.Minute

var (
	ErrNoTeam       = errors.New("submission has no team")
	ErrUnknownRound = errors.New("problem does not belong to any round")
)

// Standing is the score and penalty of one team.
type Standing struct {
	Score   int
	Penalty time.Duration
}

func (s Standing) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Score   int   `json:"score"`
		Penalty int64 `json:"penalty"`
	}{
		Score:   s.Score,
		Penalty: s.Penalty.Milliseconds(),
	})
}

func (s *Standing) UnmarshalJSON(data []byte) error {
	var raw struct {
		Score   int   `json:"score"`
		Penalty int64 `json:"penalty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Score = raw.Score
	s.Penalty = time.Duration(raw.Penalty) * time.Millisecond

	return nil
}

// Entry is one ranked line of a scoreboard.
type Entry struct {
	Team string `json:"team"`
	Standing
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Team    string `json:"team"`
		Score   int    `json:"score"`
		Penalty int64  `json:"penalty"`
	}{
		Team:    e.Team,
		Score:   e.Score,
		Penalty: e.Penalty.Milliseconds(),
	})
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Team string `json:"team"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Team = raw.Team

	return e.Standing.UnmarshalJSON(data)
}

// Rank orders a scoreboard by score descending, then penalty ascending, then
// team id.
func Rank(board map[string]Standing) []Entry {
	entries := make([]Entry, 0, len(board))
	for team, s := range board {
		entries = append(entries, Entry{Team: team, Standing: s})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Penalty, b.Penalty); c != 0 {
			return c
		}

		return cmp.Compare(a.Team, b.Team)
	})

	return entries
}

// record holds one team's state in one round. A zero solve time marks an
// unsolved problem.
type record struct {
	solved    []time.Time
	penalties []time.Duration
}

type recorded struct {
	sub   contest.Submission
	round string
}

type Scorer struct {
	rounds  []contest.Round
	byID    map[string]int
	teams   map[string]map[string]*record
	history []recorded
}

func New() *Scorer {
	return &Scorer{
		byID:  make(map[string]int),
		teams: make(map[string]map[string]*record),
	}
}

// SetRounds replaces the round set and rebuilds every team record by
// replaying the recorded submission history against it.
func (s *Scorer) SetRounds(rounds []contest.Round) {
	s.rounds = make([]contest.Round, len(rounds))
	s.byID = make(map[string]int, len(rounds))
	for i, r := range rounds {
		r.Problems = slices.Clone(r.Problems)
		s.rounds[i] = r
		s.byID[r.ID] = i
	}
	s.teams = make(map[string]map[string]*record)

	for _, h := range s.history {
		if round, idx, ok := s.locate(h.sub.ProblemID, h.round); ok {
			s.apply(h.sub, round, idx)
		}
	}
}

// AddSubmission folds a judged submission into the team's record. roundID may
// be empty, in which case the round is found by problem membership.
func (s *Scorer) AddSubmission(sub contest.Submission, roundID string) error {
	if sub.Team == "" {
		return ErrNoTeam
	}
	round, idx, ok := s.locate(sub.ProblemID, roundID)
	if !ok {
		return ErrUnknownRound
	}

	sub = sub.Clone()
	s.history = append(s.history, recorded{sub: sub, round: roundID})
	s.apply(sub, round, idx)

	return nil
}

func (s *Scorer) locate(problemID, roundID string) (contest.Round, int, bool) {
	if roundID != "" {
		if i, ok := s.byID[roundID]; ok {
			if idx := s.rounds[i].ProblemIndex(problemID); idx >= 0 {
				return s.rounds[i], idx, true
			}
		}
	}
	for _, r := range s.rounds {
		if idx := r.ProblemIndex(problemID); idx >= 0 {
			return r, idx, true
		}
	}

	return contest.Round{}, -1, false
}

func (s *Scorer) apply(sub contest.Submission, round contest.Round, idx int) {
	rounds, ok := s.teams[sub.Team]
	if !ok {
		rounds = make(map[string]*record)
		s.teams[sub.Team] = rounds
	}
	rec, ok := rounds[round.ID]
	if !ok {
		rec = &record{
			solved:    make([]time.Time, len(round.Problems)),
			penalties: make([]time.Duration, len(round.Problems)),
		}
		rounds[round.ID] = rec
	}

	if sub.Passed() {
		rec.solved[idx] = sub.Time

		return
	}
	rec.solved[idx] = time.Time{}
	rec.penalties[idx] += WrongAttemptPenalty
}

// GetRoundScores returns the standings of every team with a record in the
// round. The round penalty is the sum of wrong attempt penalties plus the time
// from round start to the team's last accepted solve.
func (s *Scorer) GetRoundScores(roundID string) map[string]Standing {
	out := make(map[string]Standing)
	i, ok := s.byID[roundID]
	if !ok {
		return out
	}
	round := s.rounds[i]

	for team, rounds := range s.teams {
		rec, ok := rounds[roundID]
		if !ok {
			continue
		}
		var st Standing
		var last time.Time
		for j, solvedAt := range rec.solved {
			st.Penalty += rec.penalties[j]
			if solvedAt.IsZero() {
				continue
			}
			st.Score++
			if solvedAt.After(last) {
				last = solvedAt
			}
		}
		if st.Score > 0 {
			st.Penalty += last.Sub(round.StartTime)
		}
		out[team] = st
	}

	return out
}

// GetScores sums every round's standings. A round's score is weighted by its
// duration rounded to the nearest hour; penalties are summed as is.
func (s *Scorer) GetScores() map[string]Standing {
	out := make(map[string]Standing)
	for _, r := range s.rounds {
		weight := int(math.Round(r.Duration().Hours()))
		for team, st := range s.GetRoundScores(r.ID) {
			total := out[team]
			total.Score += st.Score * weight
			total.Penalty += st.Penalty
			out[team] = total
		}
	}

	return out
}

// ClearScores drops every team record and the submission history.
func (s *Scorer) ClearScores() {
	s.teams = make(map[string]map[string]*record)
	s.history = nil
}

// Snapshot copies a scoreboard so callers never alias internal state.
func Snapshot(board map[string]Standing) map[string]Standing {
	if board == nil {
		return map[string]Standing{}
	}

	return maps.Clone(board)
}
