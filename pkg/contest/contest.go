package contest

import (
	"slices"
	"time"
)

// Contest is a scheduled competition made of one or more rounds.
type Contest struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Rounds      []string  `json:"rounds"`
	Exclusions  []string  `json:"exclusions,omitempty"`
	MaxTeamSize int       `json:"max_team_size"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Public      bool      `json:"public"`
}

// Round is a time window in which a fixed set of problems is submittable.
type Round struct {
	ID        string    `json:"id"`
	Contest   string    `json:"contest"`
	Number    int       `json:"number"`
	Problems  []string  `json:"problems"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (c Contest) Clone() Contest {
	c.Rounds = slices.Clone(c.Rounds)
	c.Exclusions = slices.Clone(c.Exclusions)

	return c
}

func (r Round) Clone() Round {
	r.Problems = slices.Clone(r.Problems)

	return r
}

func (r Round) HasProblem(problemID string) bool {
	return slices.Contains(r.Problems, problemID)
}

// ProblemIndex returns the position of the problem in the round or -1.
func (r Round) ProblemIndex(problemID string) int {
	return slices.Index(r.Problems, problemID)
}

func (r Round) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

type Constraints struct {
	// Time limit per test case in milliseconds.
	Time int `json:"time"`
	// Memory limit per test case in megabytes.
	Memory int `json:"memory"`
}

func (p Problem) Clone() Problem {
	if p.Solution != nil {
		sol := *p.Solution
		p.Solution = &sol
	}

	return p
}

type Problem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Author      string      `json:"author"`
	Content     string      `json:"content"`
	Constraints Constraints `json:"constraints"`
	// Solution is the expected answer for direct-compare grading, nil when the
	// problem is graded by judgehosts only.
	Solution *string `json:"solution,omitempty"`
}

type Team struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Members           []string `json:"members"`
	Registrations     []string `json:"registrations"`
	PastRegistrations []string `json:"past_registrations,omitempty"`
}

func (t Team) Clone() Team {
	t.Members = slices.Clone(t.Members)
	t.Registrations = slices.Clone(t.Registrations)
	t.PastRegistrations = slices.Clone(t.PastRegistrations)

	return t
}

func (t Team) Registered(contestID string) bool {
	return slices.Contains(t.Registrations, contestID)
}

func (t Team) HasMember(username string) bool {
	return slices.Contains(t.Members, username)
}
