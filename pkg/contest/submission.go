package contest

import (
	"slices"
	"time"
)

type ScoreState uint8

const (
	Correct ScoreState = iota + 1
	Incorrect
	TimeLimitExceeded
	MemoryLimitExceeded
	RuntimeError
	CompileError
)

func (s ScoreState) String() string {
	switch s {
	case Correct:
		return "Correct"
	case Incorrect:
		return "Incorrect"
	case TimeLimitExceeded:
		return "TimeLimitExceeded"
	case MemoryLimitExceeded:
		return "MemoryLimitExceeded"
	case RuntimeError:
		return "RuntimeError"
	case CompileError:
		return "CompileError"
	default:
		return "Unknown"
	}
}

func (s ScoreState) Valid() bool {
	return s >= Correct && s <= CompileError
}

// Score is the verdict of a single test case.
type Score struct {
	State ScoreState `json:"state"`
	// Time used in milliseconds.
	Time float64 `json:"time"`
	// Memory used in megabytes.
	Memory  float64 `json:"memory"`
	Subtask int     `json:"subtask"`
}

type Submission struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Team      string    `json:"team"`
	ProblemID string    `json:"problem_id"`
	Time      time.Time `json:"time"`
	File      string    `json:"file"`
	Language  string    `json:"language"`
	Scores    []Score   `json:"scores"`
	Analysis  bool      `json:"analysis"`
}

// Graded reports whether a verdict has been recorded.
func (s Submission) Graded() bool {
	return len(s.Scores) > 0
}

// Passed reports whether every test case of a graded submission is correct.
func (s Submission) Passed() bool {
	if len(s.Scores) == 0 {
		return false
	}
	for _, sc := range s.Scores {
		if sc.State != Correct {
			return false
		}
	}

	return true
}

// Clone returns a deep copy so callers never share score slices.
func (s Submission) Clone() Submission {
	c := s
	c.Scores = slices.Clone(s.Scores)

	return c
}

// CompletionState is the status of a problem as shown to a team.
type CompletionState uint8

const (
	NotUploaded CompletionState = iota
	Uploaded
	Submitted
	GradedPass
	GradedPartial
	GradedFail
)

func (c CompletionState) String() string {
	switch c {
	case NotUploaded:
		return "NotUploaded"
	case Uploaded:
		return "Uploaded"
	case Submitted:
		return "Submitted"
	case GradedPass:
		return "GradedPass"
	case GradedPartial:
		return "GradedPartial"
	case GradedFail:
		return "GradedFail"
	default:
		return "Unknown"
	}
}

// Completion derives the client facing state of a submission. Verdicts are
// hidden as Uploaded while withhold is set.
func Completion(sub *Submission, withhold bool) CompletionState {
	switch {
	case sub == nil:
		return NotUploaded
	case withhold:
		return Uploaded
	case len(sub.Scores) == 0:
		return Submitted
	}

	subtasks := make(map[int]bool)
	hasFail := false
	for _, sc := range sub.Scores {
		passed, seen := subtasks[sc.Subtask]
		if !seen || passed {
			subtasks[sc.Subtask] = sc.State == Correct
		}
		if sc.State != Correct {
			hasFail = true
		}
	}
	hasPass := false
	for _, passed := range subtasks {
		if passed {
			hasPass = true

			break
		}
	}

	switch {
	case hasPass && !hasFail:
		return GradedPass
	case hasPass:
		return GradedPartial
	default:
		return GradedFail
	}
}
