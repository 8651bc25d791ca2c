package grader

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/wwppc/contestd/pkg/contest"
)

type queued struct {
	sub       contest.Submission
	cb        Callback
	returns   int
	cancelled bool
	resolved  bool
}

type node struct {
	name              string
	lease             *queued
	deadline          time.Time
	lastCommunication time.Time
}

type service struct {
	mu        sync.Mutex
	problems  ProblemReader
	logger    *slog.Logger
	timeout   time.Duration
	interval  time.Duration
	open      bool
	queue     []*queued
	nodes     map[string]*node
	cancelled uint64
	now       func() time.Time
}

var _ Service = (*service)(nil)

func NewService(cfg Config, problems ProblemReader, logger *slog.Logger) Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	return &service{
		problems: problems,
		logger:   logger,
		timeout:  cfg.Timeout,
		interval: cfg.SweepInterval,
		open:     true,
		nodes:    make(map[string]*node),
		now:      time.Now,
	}
}

// resolve marks the item finished and returns the deferred callback
// invocation. Must be called with mu held.
func (s *service) resolve(q *queued, graded *contest.Submission) func() {
	if q.resolved {
		return nil
	}
	q.resolved = true
	if graded == nil {
		s.cancelled++
	}
	if q.cb == nil {
		return nil
	}
	cb := q.cb

	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("submission callback panicked", slog.Any("panic", r))
			}
		}()
		cb(graded)
	}
}

func fire(pending []func()) {
	for _, f := range pending {
		if f != nil {
			f()
		}
	}
}

func (s *service) QueueUngraded(_ context.Context, sub contest.Submission, cb Callback) {
	s.mu.Lock()
	q := &queued{sub: sub.Clone(), cb: cb}
	if !s.open {
		f := s.resolve(q, nil)
		s.mu.Unlock()
		fire([]func(){f})

		return
	}
	s.queue = append(s.queue, q)
	s.mu.Unlock()

	s.logger.Debug("submission queued",
		slog.String("problem", sub.ProblemID),
		slog.String("team", sub.Team),
		slog.String("username", sub.Username),
	)
}

func (s *service) CancelUngraded(_ context.Context, team, problemID string) bool {
	matches := func(q *queued) bool {
		return q.sub.Team == team && q.sub.ProblemID == problemID
	}

	s.mu.Lock()
	count := 0
	for _, n := range s.nodes {
		if n.lease != nil && !n.lease.cancelled && matches(n.lease) {
			n.lease.cancelled = true
			count++
		}
	}
	var pending []func()
	s.queue = slices.DeleteFunc(s.queue, func(q *queued) bool {
		if !matches(q) {
			return false
		}
		q.cancelled = true
		pending = append(pending, s.resolve(q, nil))
		count++

		return true
	})
	s.mu.Unlock()

	fire(pending)
	if count > 0 {
		s.logger.Debug("cancelled ungraded submissions",
			slog.Int("count", count),
			slog.String("team", team),
			slog.String("problem", problemID),
		)
	}

	return count > 0
}

func (s *service) touch(name string) *node {
	n, ok := s.nodes[name]
	if !ok {
		n = &node{name: name}
		s.nodes[name] = n
		s.logger.Info("new judgehost connection", slog.String("node", name))
	}
	n.lastCommunication = s.now()

	return n
}

func (s *service) GetWork(ctx context.Context, name string) (*Work, error) {
	s.mu.Lock()
	n := s.touch(name)
	if n.lease != nil {
		s.mu.Unlock()

		return nil, ErrLeaseHeld
	}
	if len(s.queue) == 0 {
		s.mu.Unlock()

		return nil, nil
	}
	q := s.queue[0]
	s.queue = s.queue[1:]
	n.lease = q
	n.deadline = s.now().Add(s.timeout)
	s.mu.Unlock()

	problems, err := s.problems.ReadProblems(ctx, contest.ProblemFilter{IDs: []string{q.sub.ProblemID}})
	if err == nil && len(problems) != 1 {
		err = fmt.Errorf("found %d problems with id %s", len(problems), q.sub.ProblemID)
	}

	s.mu.Lock()
	if n.lease != q {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: lease released during lookup", ErrProblemLookup)
	}
	if err != nil {
		n.lease = nil
		var f func()
		if q.cancelled {
			f = s.resolve(q, nil)
		} else {
			s.queue = append([]*queued{q}, s.queue...)
		}
		s.mu.Unlock()
		fire([]func(){f})

		return nil, fmt.Errorf("%w: %w", ErrProblemLookup, err)
	}
	n.lastCommunication = s.now()
	n.deadline = n.lastCommunication.Add(s.timeout)
	s.mu.Unlock()

	s.logger.Debug("leased submission",
		slog.String("node", name),
		slog.String("problem", q.sub.ProblemID),
		slog.String("username", q.sub.Username),
	)

	return &Work{
		ProblemID:   q.sub.ProblemID,
		File:        q.sub.File,
		Language:    q.sub.Language,
		Constraints: problems[0].Constraints,
	}, nil
}

func (s *service) ReturnWork(_ context.Context, name string) error {
	s.mu.Lock()
	n, ok := s.nodes[name]
	if !ok || n.lease == nil {
		s.mu.Unlock()

		return ErrNoLease
	}
	n.lastCommunication = s.now()
	q := n.lease
	n.lease = nil

	var f func()
	switch {
	case q.cancelled:
		f = s.resolve(q, nil)
	default:
		q.returns++
		if q.returns >= MaxReturns {
			q.cancelled = true
			f = s.resolve(q, nil)
			s.logger.Warn("submission returned too many times, cancelling grading",
				slog.String("problem", q.sub.ProblemID),
				slog.String("username", q.sub.Username),
				slog.Int("returns", q.returns),
			)
		} else {
			s.queue = append([]*queued{q}, s.queue...)
		}
	}
	s.mu.Unlock()

	fire([]func(){f})
	s.logger.Debug("work returned", slog.String("node", name), slog.String("problem", q.sub.ProblemID))

	return nil
}

type wireScore struct {
	State   *float64 `json:"state"`
	Time    *float64 `json:"time"`
	Memory  *float64 `json:"memory"`
	Subtask *float64 `json:"subtask"`
}

// parseScores accepts only an array whose every entry carries a known state
// and numeric time, memory and subtask.
func parseScores(raw json.RawMessage) ([]contest.Score, error) {
	var entries []*wireScore
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil || entries == nil {
		return nil, ErrMalformedScores
	}
	scores := make([]contest.Score, 0, len(entries))
	for _, e := range entries {
		if e == nil || e.State == nil || e.Time == nil || e.Memory == nil || e.Subtask == nil {
			return nil, ErrMalformedScores
		}
		state := contest.ScoreState(*e.State)
		if float64(state) != *e.State || !state.Valid() {
			return nil, ErrMalformedScores
		}
		if *e.Subtask != math.Trunc(*e.Subtask) || math.Abs(*e.Subtask) > math.MaxInt32 {
			return nil, ErrMalformedScores
		}
		scores = append(scores, contest.Score{
			State:   state,
			Time:    *e.Time,
			Memory:  *e.Memory,
			Subtask: int(*e.Subtask),
		})
	}

	return scores, nil
}

func (s *service) FinishWork(_ context.Context, name string, report Report) error {
	s.mu.Lock()
	n, ok := s.nodes[name]
	if !ok || n.lease == nil {
		s.mu.Unlock()

		return ErrNoLease
	}
	n.lastCommunication = s.now()

	scores, err := parseScores(report.Scores)
	if err != nil {
		s.mu.Unlock()

		return err
	}

	q := n.lease
	n.lease = nil
	var f func()
	if q.cancelled {
		f = s.resolve(q, nil)
	} else {
		graded := q.sub.Clone()
		graded.Scores = scores
		f = s.resolve(q, &graded)
	}
	s.mu.Unlock()

	fire([]func(){f})
	s.logger.Debug("work finished",
		slog.String("node", name),
		slog.String("problem", q.sub.ProblemID),
		slog.String("username", q.sub.Username),
		slog.Bool("discarded", q.cancelled),
	)

	return nil
}

func (s *service) Sweep(_ context.Context) {
	s.mu.Lock()
	now := s.now()
	var pending []func()
	for name, n := range s.nodes {
		if n.lease != nil && now.After(n.deadline) {
			pending = append(pending, s.reclaim(n))
			s.logger.Info("judgehost lease expired, returning submission to queue", slog.String("node", name))
		}
		if n.lastCommunication.Add(s.timeout).Before(now) {
			if n.lease != nil {
				pending = append(pending, s.reclaim(n))
			}
			delete(s.nodes, name)
			s.logger.Info("judgehost timed out", slog.String("node", name))
		}
	}
	s.mu.Unlock()

	fire(pending)
}

// reclaim takes the lease away from n, requeueing it at the front or
// resolving it when cancelled. Callers hold s.mu.
func (s *service) reclaim(n *node) func() {
	q := n.lease
	n.lease = nil
	if q.cancelled {
		return s.resolve(q, nil)
	}
	s.queue = append([]*queued{q}, s.queue...)

	return nil
}

func (s *service) Stats(_ context.Context) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Queued:    len(s.queue),
		Cancelled: s.cancelled,
		Open:      s.open,
		Nodes:     make([]NodeStats, 0, len(s.nodes)),
	}
	for _, n := range s.nodes {
		ns := NodeStats{
			Name:              n.name,
			Grading:           n.lease != nil,
			LastCommunication: n.lastCommunication,
		}
		if n.lease != nil {
			st.Leased++
			ns.Deadline = n.deadline
		}
		st.Nodes = append(st.Nodes, ns)
	}
	slices.SortFunc(st.Nodes, func(a, b NodeStats) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return st
}

func (s *service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("grader sweep started", slog.Duration("interval", s.interval), slog.Duration("timeout", s.timeout))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Close stops accepting work and resolves every queued and leased submission
// with nil.
func (s *service) Close(_ context.Context) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()

		return
	}
	s.open = false
	var pending []func()
	for _, q := range s.queue {
		q.cancelled = true
		pending = append(pending, s.resolve(q, nil))
	}
	s.queue = nil
	for _, n := range s.nodes {
		if n.lease != nil {
			n.lease.cancelled = true
			pending = append(pending, s.resolve(n.lease, nil))
			n.lease = nil
		}
	}
	s.mu.Unlock()

	fire(pending)
	s.logger.Info("grader closed", slog.Int("cancelled", len(pending)))
}
