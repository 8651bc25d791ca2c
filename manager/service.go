package manager

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wwppc/contestd"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/contest"
	"github.com/wwppc/contestd/pkg/cron"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
	"github.com/wwppc/contestd/pkg/scorer"
	"github.com/wwppc/contestd/pkg/storage"
)

type Config struct {
	TickInterval      time.Duration `env:"TICK_INTERVAL"      envDefault:"50ms"`
	ScoreboardTicks   int           `env:"SCOREBOARD_TICKS"   envDefault:"200"`
	DiscoverySchedule string        `env:"DISCOVERY_SCHEDULE" envDefault:"@every 1m"`
}

type service struct {
	mu          sync.Mutex
	discoveryMu sync.Mutex
	cfg         Config
	types       map[string]contestd.ContestConfig
	repo        storage.Repository
	grader      grader.Service
	notifier    Notifier
	logger      *slog.Logger
	schedule    *cron.Schedule
	now         func() time.Time
	hosts       map[string]*Host
	// finished holds contests ended by an operator so that discovery does
	// not restart them while their window is still open.
	finished map[string]bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
}

var _ Service = (*service)(nil)

func NewService(cfg Config, contests contestd.Config, repo storage.Repository, g grader.Service, notifier Notifier, logger *slog.Logger) (Service, error) {
	if cfg.DiscoverySchedule == "" {
		cfg.DiscoverySchedule = DefaultDiscoverySchedule
	}
	schedule, err := cron.Parse(cfg.DiscoverySchedule)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &service{
		cfg:      cfg,
		types:    contests.Contests,
		repo:     repo,
		grader:   g,
		notifier: notifier,
		logger:   logger,
		schedule: schedule,
		now:      time.Now,
		hosts:    make(map[string]*Host),
		finished: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (svc *service) host(id string) (*Host, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	h, ok := svc.hosts[id]
	if !ok {
		return nil, ErrContestNotRunning
	}

	return h, nil
}

func (svc *service) forget(h *Host) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.hosts[h.ID()] == h {
		delete(svc.hosts, h.ID())
		svc.logger.Info("contest host removed", slog.String("contest", h.ID()))
	}
}

func (svc *service) ListContests(_ context.Context) ([]HostState, error) {
	svc.mu.Lock()
	hosts := make([]*Host, 0, len(svc.hosts))
	for _, h := range svc.hosts {
		hosts = append(hosts, h)
	}
	svc.mu.Unlock()

	states := make([]HostState, 0, len(hosts))
	for _, h := range hosts {
		states = append(states, h.State())
	}
	slices.SortFunc(states, func(a, b HostState) int {
		return strings.Compare(a.ID, b.ID)
	})

	return states, nil
}

func (svc *service) GetContest(_ context.Context, id string) (HostState, error) {
	h, err := svc.host(id)
	if err != nil {
		return HostState{}, err
	}

	return h.State(), nil
}

func (svc *service) Scoreboard(_ context.Context, id string, live bool) ([]scorer.Entry, error) {
	h, err := svc.host(id)
	if err != nil {
		return nil, err
	}

	return h.Scoreboard(live), nil
}

func (svc *service) Submit(ctx context.Context, id string, req SubmitRequest) (SubmitResult, error) {
	if req.Username == "" || req.ProblemID == "" {
		return SubmitError, pkgerrors.ErrEmptyKey
	}
	h, err := svc.host(id)
	if err != nil {
		return SubmitError, err
	}

	return h.Submit(ctx, req), nil
}

func (svc *service) Reload(ctx context.Context, id string) (HostState, error) {
	h, err := svc.host(id)
	if err != nil {
		return HostState{}, err
	}
	if err := h.Reload(ctx); err != nil {
		return HostState{}, err
	}

	return h.State(), nil
}

func (svc *service) EndContest(ctx context.Context, id string, complete bool) error {
	h, err := svc.host(id)
	if err != nil {
		return err
	}
	svc.mu.Lock()
	svc.finished[id] = true
	svc.mu.Unlock()
	h.End(ctx, complete)

	return nil
}

func (svc *service) Discover(ctx context.Context) error {
	svc.discoveryMu.Lock()
	defer svc.discoveryMu.Unlock()

	active, err := svc.repo.ReadContests(ctx, contest.ContestFilter{ActiveAt: svc.now()})
	if err != nil {
		return err
	}

	for _, c := range active {
		svc.mu.Lock()
		_, running := svc.hosts[c.ID]
		skip := running || svc.closed || svc.finished[c.ID]
		svc.mu.Unlock()
		if skip {
			continue
		}

		cfg, ok := svc.types[c.Type]
		if !ok {
			svc.logger.Warn("skipping contest of unconfigured type",
				slog.String("contest", c.ID),
				slog.String("type", c.Type),
				slog.Any("error", ErrUnknownType),
			)

			continue
		}

		h := NewHost(c.ID, cfg, svc.cfg, svc.repo, svc.grader, svc.notifier, svc.logger)
		h.now = svc.now
		h.OnEnded(func(string) { svc.forget(h) })
		if err := h.Reload(ctx); err != nil {
			continue
		}

		svc.mu.Lock()
		svc.hosts[c.ID] = h
		svc.mu.Unlock()
		if h.Ended() {
			svc.forget(h)

			continue
		}

		svc.logger.Info("contest host started", slog.String("contest", c.ID), slog.String("type", c.Type))
		go h.Start(svc.ctx)
	}

	return nil
}

func (svc *service) JudgeStats(ctx context.Context) grader.Stats {
	return svc.grader.Stats(ctx)
}

func (svc *service) Start(ctx context.Context) error {
	return discoveryLoop(ctx, svc.schedule, svc.now, svc.Discover, svc.logger)
}

func (svc *service) Close(ctx context.Context) error {
	svc.mu.Lock()
	if svc.closed {
		svc.mu.Unlock()

		return pkgerrors.ErrClosed
	}
	svc.closed = true
	hosts := make([]*Host, 0, len(svc.hosts))
	for _, h := range svc.hosts {
		hosts = append(hosts, h)
	}
	svc.mu.Unlock()

	for _, h := range hosts {
		h.End(ctx, false)
	}
	svc.grader.Close(ctx)
	svc.cancel()

	return nil
}
