package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/wwppc/contestd/pkg/contest"
)

// Epoch is a millisecond-aligned UTC instant every backend round-trips exactly.
var Epoch = time.UnixMilli(1_760_000_000_000).UTC()

func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func TestContest(id string, rounds ...string) contest.Contest {
	return contest.Contest{
		ID:          id,
		Type:        "standard",
		Rounds:      rounds,
		MaxTeamSize: 3,
		StartTime:   Epoch,
		EndTime:     Epoch.Add(3 * time.Hour),
		Public:      true,
	}
}

func TestRound(id, contestID string, number int, problems ...string) contest.Round {
	start := Epoch.Add(time.Duration(number-1) * time.Hour)

	return contest.Round{
		ID:        id,
		Contest:   contestID,
		Number:    number,
		Problems:  problems,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	}
}

func TestProblem(id string) contest.Problem {
	solution := "print(42)"

	return contest.Problem{
		ID:          id,
		Name:        "problem " + id,
		Author:      "judge",
		Content:     "Print the answer.",
		Constraints: contest.Constraints{Time: 1000, Memory: 256},
		Solution:    &solution,
	}
}

func TestTeam(id string, members ...string) contest.Team {
	return contest.Team{
		ID:      id,
		Name:    "team " + id,
		Members: members,
	}
}

func TestSubmission(id, team, username, problemID string, at time.Time) contest.Submission {
	return contest.Submission{
		ID:        id,
		Username:  username,
		Team:      team,
		ProblemID: problemID,
		Time:      at,
		File:      "print(42)",
		Language:  "python",
	}
}

func Correct() []contest.Score {
	return []contest.Score{
		{State: contest.Correct, Time: 12.5, Memory: 3, Subtask: 1},
		{State: contest.Correct, Time: 14, Memory: 3.5, Subtask: 2},
	}
}
