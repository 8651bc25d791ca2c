package manager

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/google/uuid"
	"github.com/wwppc/contestd"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
	"github.com/wwppc/contestd/pkg/scorer"
	"github.com/wwppc/contestd/pkg/storage"
)

const (
	DefaultTickInterval    = 50 * time.Millisecond
	DefaultScoreboardTicks = 200
)

var sessionNames = namegenerator.NewGenerator()

type pendingKey struct {
	team    string
	problem string
}

// Host runs one contest: it tracks the current round, admits submissions and
// keeps the public and live scoreboards. All state is guarded by mu.
type Host struct {
	mu       sync.Mutex
	id       string
	session  string
	cfg      contestd.ContestConfig
	repo     storage.Repository
	grader   grader.Service
	notifier Notifier
	logger   *slog.Logger
	scorer   *scorer.Scorer
	now      func() time.Time

	tickInterval    time.Duration
	scoreboardTicks int

	contest contest.Contest
	rounds  []contest.Round
	index   int
	active  bool
	ended   bool
	cutoff  time.Time
	public  map[string]scorer.Standing
	live    map[string]scorer.Standing
	ticks   int
	pending map[pendingKey]*time.Timer

	outbox    []Event
	listeners []func(id string)
	stop      chan struct{}
	running   bool
}

func NewHost(id string, cfg contestd.ContestConfig, mcfg Config, repo storage.Repository, g grader.Service, notifier Notifier, logger *slog.Logger) *Host {
	if mcfg.TickInterval <= 0 {
		mcfg.TickInterval = DefaultTickInterval
	}
	if mcfg.ScoreboardTicks <= 0 {
		mcfg.ScoreboardTicks = DefaultScoreboardTicks
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	session := sessionNames.Generate()

	return &Host{
		id:              id,
		session:         session,
		cfg:             cfg,
		repo:            repo,
		grader:          g,
		notifier:        notifier,
		logger:          logger.With(slog.String("contest", id), slog.String("session", session)),
		scorer:          scorer.New(),
		now:             time.Now,
		tickInterval:    mcfg.TickInterval,
		scoreboardTicks: mcfg.ScoreboardTicks,
		index:           -1,
		public:          map[string]scorer.Standing{},
		live:            map[string]scorer.Standing{},
		pending:         make(map[pendingKey]*time.Timer),
		stop:            make(chan struct{}),
	}
}

func (h *Host) ID() string {
	return h.id
}

// OnEnded registers a listener fired once when the contest ends.
func (h *Host) OnEnded(fn func(id string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

// release unlocks mu and delivers the events queued while it was held.
func (h *Host) release(ctx context.Context) {
	events := h.outbox
	h.outbox = nil
	var listeners []func(string)
	if h.ended {
		listeners = h.listeners
		h.listeners = nil
	}
	h.mu.Unlock()

	for _, ev := range events {
		if err := h.notifier.Notify(ctx, ev); err != nil {
			h.logger.Warn("failed to notify", slog.String("event", string(ev.Kind)), slog.Any("error", err))
		}
	}
	for _, fn := range listeners {
		fn(h.id)
	}
}

func (h *Host) emit(kind EventKind, users []string, payload any) {
	h.outbox = append(h.outbox, Event{
		Kind:    kind,
		Contest: h.id,
		Users:   users,
		Payload: payload,
		Time:    h.now(),
	})
}

// Reload reads the contest and its rounds, replays judged history into the
// scorer and derives the current round. Structural problems end the contest.
func (h *Host) Reload(ctx context.Context) error {
	h.mu.Lock()
	defer h.release(ctx)

	if h.ended {
		return ErrContestNotRunning
	}
	if err := h.reload(ctx); err != nil {
		h.logger.Error("failed to load contest", slog.Any("error", err))
		h.end(ctx, false)

		return err
	}

	now := h.now()
	switch {
	case now.Before(h.contest.StartTime):
		h.logger.Warn("contest has not started yet")
		h.end(ctx, false)
	case !now.Before(h.contest.EndTime):
		h.end(ctx, true)
	}

	return nil
}

func (h *Host) reload(ctx context.Context) error {
	contests, err := h.repo.ReadContests(ctx, contest.ContestFilter{IDs: []string{h.id}})
	if err != nil {
		return fmt.Errorf("failed to read contest: %w", err)
	}
	if len(contests) == 0 {
		return fmt.Errorf("contest %s: %w", h.id, pkgerrors.ErrNotFound)
	}
	c := contests[0]
	if len(c.Rounds) == 0 {
		return ErrNoRounds
	}
	if !h.cfg.Rounds && len(c.Rounds) > 1 {
		return ErrRoundsDisabled
	}

	read, err := h.repo.ReadRounds(ctx, contest.RoundFilter{IDs: c.Rounds})
	if err != nil {
		return fmt.Errorf("failed to read rounds: %w", err)
	}
	byID := make(map[string]contest.Round, len(read))
	for _, r := range read {
		byID[r.ID] = r
	}
	rounds := make([]contest.Round, 0, len(c.Rounds))
	var problems []string
	for i, id := range c.Rounds {
		r, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingRound, id)
		}
		r.Number = i
		rounds = append(rounds, r)
		problems = append(problems, r.Problems...)
	}

	users, err := h.repo.GetAllRegisteredUsers(ctx, h.id)
	if err != nil {
		return fmt.Errorf("failed to read registered users: %w", err)
	}
	var subs []contest.Submission
	if len(users) > 0 && len(problems) > 0 {
		subs, err = h.repo.ReadSubmissions(ctx, contest.SubmissionFilter{
			Usernames:  users,
			ProblemIDs: problems,
			Analysis:   contest.Bool(false),
			Graded:     true,
		})
		if err != nil {
			return fmt.Errorf("failed to read submissions: %w", err)
		}
	}
	contest.SortSubmissions(subs)

	h.contest = c
	h.rounds = rounds
	h.cutoff = rounds[len(rounds)-1].EndTime.Add(-h.cfg.FreezeDuration())

	h.scorer.ClearScores()
	h.scorer.SetRounds(rounds)
	split := len(subs)
	for i, s := range subs {
		if !s.Time.Before(h.cutoff) {
			split = i

			break
		}
	}
	h.fold(subs[:split])
	h.public = scorer.Snapshot(h.scorer.GetScores())
	h.fold(subs[split:])
	h.live = scorer.Snapshot(h.scorer.GetScores())
	h.ticks = 0

	now := h.now()
	h.index = -1
	h.active = false
	for i, r := range rounds {
		if !r.StartTime.After(now) {
			h.index = i
		}
	}
	if h.index >= 0 {
		h.active = now.Before(rounds[h.index].EndTime)
	}

	h.logger.Info("contest loaded",
		slog.Int("rounds", len(rounds)),
		slog.Int("submissions", len(subs)),
		slog.Int("index", h.index),
		slog.Bool("active", h.active),
	)
	h.emitRound()
	h.emit(ScoreboardEvent, nil, scorer.Rank(h.public))
	h.emit(LiveScoreboardEvent, nil, scorer.Rank(h.live))

	return nil
}

func (h *Host) fold(subs []contest.Submission) {
	for _, s := range subs {
		if err := h.scorer.AddSubmission(s, ""); err != nil {
			h.logger.Debug("skipped submission", slog.String("submission", s.ID), slog.Any("error", err))
		}
	}
}

type roundPayload struct {
	Index  int            `json:"index"`
	Active bool           `json:"active"`
	Round  *contest.Round `json:"round,omitempty"`
}

func (h *Host) emitRound() {
	p := roundPayload{Index: h.index, Active: h.active}
	if h.index >= 0 {
		r := h.rounds[h.index].Clone()
		p.Round = &r
	}
	h.emit(RoundEvent, nil, p)
}

// Start runs the tick loop until the contest ends or ctx is done.
func (h *Host) Start(ctx context.Context) {
	h.mu.Lock()
	if h.running || h.ended {
		h.mu.Unlock()

		return
	}
	h.running = true
	h.mu.Unlock()

	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case <-ticker.C:
			h.Tick(ctx)
		}
	}
}

// Tick advances the round state machine and, every scoreboardTicks ticks,
// recomputes the scoreboards. Panics are logged and swallowed.
func (h *Host) Tick(ctx context.Context) {
	h.mu.Lock()
	defer h.release(ctx)

	if h.ended || len(h.rounds) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("contest tick panicked", slog.Any("panic", r))
		}
	}()

	now := h.now()
	changed := false
	if h.index >= 0 && h.active && !now.Before(h.rounds[h.index].EndTime) {
		h.active = false
		changed = true
	}
	for h.index+1 < len(h.rounds) && !now.Before(h.rounds[h.index+1].StartTime) {
		h.index++
		h.active = now.Before(h.rounds[h.index].EndTime)
		changed = true
	}
	if changed {
		h.logger.Info("round changed", slog.Int("index", h.index), slog.Bool("active", h.active))
		h.emitRound()
	}

	if !now.Before(h.contest.EndTime) {
		h.end(ctx, true)

		return
	}

	h.ticks++
	if h.ticks < h.scoreboardTicks {
		return
	}
	h.ticks = 0
	scores := h.scorer.GetScores()
	if now.Before(h.cutoff) {
		h.public = scorer.Snapshot(scores)
		h.emit(ScoreboardEvent, nil, scorer.Rank(h.public))
	}
	h.live = scorer.Snapshot(scores)
	h.emit(LiveScoreboardEvent, nil, scorer.Rank(h.live))
}

// problemSubmittable reports whether the current round is open and contains
// the problem.
func (h *Host) problemSubmittable(problemID string) bool {
	return !h.ended && h.active && h.index >= 0 && h.rounds[h.index].HasProblem(problemID)
}

func (h *Host) ProblemSubmittable(problemID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.problemSubmittable(problemID)
}

// Submit admits a submission and hands it to the grader, or schedules a
// direct comparison when the contest type does not grade solvers.
func (h *Host) Submit(ctx context.Context, req SubmitRequest) SubmitResult {
	h.mu.Lock()
	defer h.release(ctx)

	logger := h.logger.With(slog.String("username", req.Username), slog.String("problem", req.ProblemID))

	if len(req.File) > h.cfg.MaxSubmissionSize {
		return FileTooLarge
	}
	if h.cfg.SubmitSolver && !slices.Contains(h.cfg.AcceptedSolverLanguages, req.Language) {
		return LanguageNotAcceptable
	}
	if !h.problemSubmittable(req.ProblemID) {
		return ProblemNotSubmittable
	}
	problems, err := h.repo.ReadProblems(ctx, contest.ProblemFilter{IDs: []string{req.ProblemID}})
	if err != nil || len(problems) == 0 {
		return ProblemNotSubmittable
	}
	team, err := h.repo.GetTeamData(ctx, req.Username)
	if err != nil {
		logger.Warn("failed to resolve team", slog.Any("error", err))

		return SubmitError
	}

	sub := contest.Submission{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Team:      team.ID,
		ProblemID: req.ProblemID,
		Time:      h.now(),
		File:      req.File,
		Language:  req.Language,
	}

	if h.cfg.SubmitSolver {
		if h.grader.CancelUngraded(ctx, team.ID, req.ProblemID) {
			logger.Debug("cancelled previous grading")
		}
	}
	if err := h.repo.WriteSubmission(ctx, sub, h.cfg.WithholdResults); err != nil {
		logger.Error("failed to write submission", slog.Any("error", err))

		return SubmitError
	}

	if h.cfg.SubmitSolver {
		h.grader.QueueUngraded(ctx, sub, h.graded(logger))
	} else {
		h.schedule(sub)
	}

	h.notifyTeam(team.Members, sub)
	logger.Info("accepted submission", slog.String("team", team.ID), slog.String("submission", sub.ID))

	return Success
}

// graded is the grader callback. A nil submission means grading was
// cancelled or given up on, which leaves the stored attempt ungraded.
func (h *Host) graded(logger *slog.Logger) grader.Callback {
	return func(g *contest.Submission) {
		if g == nil {
			logger.Debug("submission returned without verdict")

			return
		}
		ctx := context.Background()
		h.mu.Lock()
		defer h.release(ctx)
		if h.ended {
			return
		}
		h.record(ctx, *g)
	}
}

// schedule debounces direct comparisons per team and problem so that only
// the latest submission within the delay is scored.
func (h *Host) schedule(sub contest.Submission) {
	key := pendingKey{team: sub.Team, problem: sub.ProblemID}
	if t, ok := h.pending[key]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(h.cfg.SubmissionDelay(), func() {
		ctx := context.Background()
		h.mu.Lock()
		defer h.release(ctx)
		if h.pending[key] != timer {
			return
		}
		delete(h.pending, key)
		if h.ended {
			return
		}
		h.compare(ctx, sub)
	})
	h.pending[key] = timer
}

func (h *Host) compare(ctx context.Context, sub contest.Submission) {
	problems, err := h.repo.ReadProblems(ctx, contest.ProblemFilter{IDs: []string{sub.ProblemID}})
	if err != nil || len(problems) == 0 {
		h.logger.Error("failed to read problem for comparison", slog.String("problem", sub.ProblemID), slog.Any("error", err))

		return
	}
	p := problems[0]
	if p.Solution == nil {
		h.logger.Error("problem has no solution for direct comparison", slog.String("problem", p.ID))

		return
	}

	state := contest.Incorrect
	if sub.File == *p.Solution {
		state = contest.Correct
	}
	graded := sub.Clone()
	graded.Scores = []contest.Score{{State: state}}
	h.record(ctx, graded)
}

// record persists a judged submission, tells the team and folds it into the
// scorer under the current round.
func (h *Host) record(ctx context.Context, g contest.Submission) {
	logger := h.logger.With(slog.String("submission", g.ID), slog.String("team", g.Team))
	if err := h.repo.WriteSubmission(ctx, g, h.cfg.WithholdResults); err != nil {
		logger.Error("failed to write graded submission", slog.Any("error", err))
	}
	if team, err := h.repo.GetTeamData(ctx, g.Team); err == nil {
		h.notifyTeam(team.Members, g)
	} else {
		logger.Warn("failed to resolve team", slog.Any("error", err))
	}

	roundID := ""
	if h.index >= 0 {
		roundID = h.rounds[h.index].ID
	}
	if err := h.scorer.AddSubmission(g, roundID); err != nil {
		logger.Warn("failed to score submission", slog.Any("error", err))
	}
}

type submissionPayload struct {
	Submission string                  `json:"submission"`
	ProblemID  string                  `json:"problem_id"`
	Language   string                  `json:"language"`
	Time       time.Time               `json:"time"`
	State      contest.CompletionState `json:"state"`
	StateName  string                  `json:"state_name"`
}

func (h *Host) notifyTeam(members []string, sub contest.Submission) {
	if len(members) == 0 {
		return
	}
	withhold := h.cfg.WithholdResults && h.index >= 0 && h.rounds[h.index].HasProblem(sub.ProblemID)
	state := contest.Completion(&sub, withhold)
	h.emit(SubmissionEvent, slices.Clone(members), submissionPayload{
		Submission: sub.ID,
		ProblemID:  sub.ProblemID,
		Language:   sub.Language,
		Time:       sub.Time,
		State:      state,
		StateName:  state.String(),
	})
}

// End stops the contest. complete marks it finished in storage so it is never
// discovered again. Repeated calls are no-ops.
func (h *Host) End(ctx context.Context, complete bool) {
	h.mu.Lock()
	defer h.release(ctx)
	h.end(ctx, complete)
}

func (h *Host) end(ctx context.Context, complete bool) {
	if h.ended {
		return
	}
	h.ended = true
	h.active = false
	for k, t := range h.pending {
		t.Stop()
		delete(h.pending, k)
	}
	close(h.stop)

	if complete {
		h.logger.Info("finishing contest")
		if err := h.repo.FinishContest(ctx, h.id); err != nil {
			h.logger.Error("failed to finish contest", slog.Any("error", err))
		}
	}
	h.emit(EndedEvent, nil, map[string]bool{"complete": complete})
}

func (h *Host) Ended() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.ended
}

func (h *Host) State() HostState {
	h.mu.Lock()
	defer h.mu.Unlock()

	rounds := make([]contest.Round, len(h.rounds))
	for i, r := range h.rounds {
		rounds[i] = r.Clone()
	}

	return HostState{
		ID:           h.id,
		Type:         h.contest.Type,
		Session:      h.session,
		Rounds:       rounds,
		Index:        h.index,
		Active:       h.active,
		StartTime:    h.contest.StartTime,
		EndTime:      h.contest.EndTime,
		FreezeCutoff: h.cutoff,
		Frozen:       !h.cutoff.IsZero() && !h.now().Before(h.cutoff),
		Ended:        h.ended,
	}
}

// Scoreboard returns the ranked public view, or the live view.
func (h *Host) Scoreboard(live bool) []scorer.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if live {
		return scorer.Rank(h.live)
	}

	return scorer.Rank(h.public)
}
