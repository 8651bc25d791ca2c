package grader

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/wwppc/contestd/pkg/contest"
)

const (
	// MaxReturns is the number of failed leases after which a submission is
	// given up on.
	MaxReturns = 5

	DefaultTimeout       = 180 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

var (
	ErrLeaseHeld       = errors.New("node already holds unfinished work")
	ErrNoLease         = errors.New("node holds no active work")
	ErrMalformedScores = errors.New("malformed scores")
	ErrProblemLookup   = errors.New("problem lookup failed")
)

// Callback receives the graded submission, or nil when grading was cancelled
// or given up on. It is invoked exactly once per queued submission.
type Callback func(graded *contest.Submission)

// Work is the payload handed to a judgehost.
type Work struct {
	ProblemID   string              `json:"problemId"`
	File        string              `json:"file"`
	Language    string              `json:"lang"`
	Constraints contest.Constraints `json:"constraints"`
}

// Report is the body of a finish-work call. Scores is kept raw so that every
// entry can be checked field by field.
type Report struct {
	Scores json.RawMessage `json:"scores"`
}

type NodeStats struct {
	Name              string    `json:"name"`
	Grading           bool      `json:"grading"`
	Deadline          time.Time `json:"deadline,omitzero"`
	LastCommunication time.Time `json:"last_communication"`
}

type Stats struct {
	Queued    int         `json:"queued"`
	Leased    int         `json:"leased"`
	Cancelled uint64      `json:"cancelled"`
	Open      bool        `json:"open"`
	Nodes     []NodeStats `json:"nodes"`
}

// ProblemReader resolves problem constraints for leased work.
type ProblemReader interface {
	ReadProblems(ctx context.Context, filter contest.ProblemFilter) ([]contest.Problem, error)
}

type Config struct {
	Timeout       time.Duration `env:"TIMEOUT"        envDefault:"180s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
}

// Service brokers ungraded submissions to remote judgehosts under leases.
type Service interface {
	// QueueUngraded appends a submission to the back of the queue. After
	// Close the callback fires with nil immediately.
	QueueUngraded(ctx context.Context, sub contest.Submission, cb Callback)
	// CancelUngraded drops queued submissions of the team to the problem and
	// marks matching leases cancelled. It reports whether anything was
	// cancelled.
	CancelUngraded(ctx context.Context, team, problemID string) bool
	// GetWork leases the next queued submission to the node. A nil Work means
	// the queue is empty.
	GetWork(ctx context.Context, node string) (*Work, error)
	ReturnWork(ctx context.Context, node string) error
	FinishWork(ctx context.Context, node string, report Report) error
	// Sweep reclaims expired leases and forgets unresponsive nodes.
	Sweep(ctx context.Context)
	Stats(ctx context.Context) Stats
	// Start runs the sweep loop until ctx is done.
	Start(ctx context.Context) error
	Close(ctx context.Context)
}
