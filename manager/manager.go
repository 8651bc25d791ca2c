package manager

import (
	"context"
	"errors"
	"time"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
	"github.com/wwppc/contestd/pkg/scorer"
)

var (
	ErrContestNotRunning = errors.New("contest is not running")
	ErrNoRounds          = errors.New("contest has no rounds")
	ErrRoundsDisabled    = errors.New("contest type does not allow multiple rounds")
	ErrMissingRound      = errors.New("contest references a missing round")
	ErrUnknownType       = errors.New("contest type is not configured")
)

// SubmitResult is the closed set of answers a submitter can receive.
type SubmitResult uint8

const (
	Success SubmitResult = iota
	FileTooLarge
	LanguageNotAcceptable
	ProblemNotSubmittable
	SubmitError
)

func (r SubmitResult) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case FileTooLarge:
		return "FILE_TOO_LARGE"
	case LanguageNotAcceptable:
		return "LANGUAGE_NOT_ACCEPTABLE"
	case ProblemNotSubmittable:
		return "PROBLEM_NOT_SUBMITTABLE"
	default:
		return "ERROR"
	}
}

func (r SubmitResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *SubmitResult) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SUCCESS":
		*r = Success
	case "FILE_TOO_LARGE":
		*r = FileTooLarge
	case "LANGUAGE_NOT_ACCEPTABLE":
		*r = LanguageNotAcceptable
	case "PROBLEM_NOT_SUBMITTABLE":
		*r = ProblemNotSubmittable
	default:
		*r = SubmitError
	}

	return nil
}

type SubmitRequest struct {
	Username  string `json:"username"`
	ProblemID string `json:"problem_id"`
	File      string `json:"file"`
	Language  string `json:"language"`
}

// HostState is a point in time view of a running contest.
type HostState struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Session      string          `json:"session"`
	Rounds       []contest.Round `json:"rounds"`
	Index        int             `json:"index"`
	Active       bool            `json:"active"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	FreezeCutoff time.Time       `json:"freeze_cutoff"`
	Frozen       bool            `json:"frozen"`
	Ended        bool            `json:"ended"`
}

// Service discovers contests that should be running and routes operator and
// submitter requests to their hosts.
type Service interface {
	ListContests(ctx context.Context) ([]HostState, error)
	GetContest(ctx context.Context, id string) (HostState, error)
	// Scoreboard returns the ranked public view, or the live one when live is
	// set.
	Scoreboard(ctx context.Context, id string, live bool) ([]scorer.Entry, error)
	Submit(ctx context.Context, id string, req SubmitRequest) (SubmitResult, error)
	Reload(ctx context.Context, id string) (HostState, error)
	// EndContest stops a running contest. complete also moves it to the past
	// registrations of every team.
	EndContest(ctx context.Context, id string, complete bool) error
	// Discover starts hosts for active contests not yet running.
	Discover(ctx context.Context) error
	JudgeStats(ctx context.Context) grader.Stats
	// Start runs discovery on its schedule until ctx is done.
	Start(ctx context.Context) error
	// Close ends every host without finishing it and closes the grader.
	Close(ctx context.Context) error
}
