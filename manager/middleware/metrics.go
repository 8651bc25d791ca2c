package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/scorer"
)

var _ manager.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     manager.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc manager.Service) manager.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) observe(method string, begin time.Time) {
	mm.counter.With("method", method).Add(1)
	mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mm *metricsMiddleware) ListContests(ctx context.Context) ([]manager.HostState, error) {
	defer mm.observe("list-contests", time.Now())

	return mm.svc.ListContests(ctx)
}

func (mm *metricsMiddleware) GetContest(ctx context.Context, id string) (manager.HostState, error) {
	defer mm.observe("get-contest", time.Now())

	return mm.svc.GetContest(ctx, id)
}

func (mm *metricsMiddleware) Scoreboard(ctx context.Context, id string, live bool) ([]scorer.Entry, error) {
	defer mm.observe("scoreboard", time.Now())

	return mm.svc.Scoreboard(ctx, id, live)
}

func (mm *metricsMiddleware) Submit(ctx context.Context, id string, req manager.SubmitRequest) (manager.SubmitResult, error) {
	defer mm.observe("submit", time.Now())

	return mm.svc.Submit(ctx, id, req)
}

func (mm *metricsMiddleware) Reload(ctx context.Context, id string) (manager.HostState, error) {
	defer mm.observe("reload", time.Now())

	return mm.svc.Reload(ctx, id)
}

func (mm *metricsMiddleware) EndContest(ctx context.Context, id string, complete bool) error {
	defer mm.observe("end-contest", time.Now())

	return mm.svc.EndContest(ctx, id, complete)
}

func (mm *metricsMiddleware) Discover(ctx context.Context) error {
	defer mm.observe("discover", time.Now())

	return mm.svc.Discover(ctx)
}

func (mm *metricsMiddleware) JudgeStats(ctx context.Context) grader.Stats {
	defer mm.observe("judge-stats", time.Now())

	return mm.svc.JudgeStats(ctx)
}

func (mm *metricsMiddleware) Start(ctx context.Context) error {
	return mm.svc.Start(ctx)
}

func (mm *metricsMiddleware) Close(ctx context.Context) error {
	return mm.svc.Close(ctx)
}
