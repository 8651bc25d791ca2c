package middleware

import (
	"context"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/scorer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ manager.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    manager.Service
}

func Tracing(tracer trace.Tracer, svc manager.Service) manager.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) ListContests(ctx context.Context) ([]manager.HostState, error) {
	ctx, span := tm.tracer.Start(ctx, "list-contests")
	defer span.End()

	return tm.svc.ListContests(ctx)
}

func (tm *tracing) GetContest(ctx context.Context, id string) (manager.HostState, error) {
	ctx, span := tm.tracer.Start(ctx, "get-contest", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetContest(ctx, id)
}

func (tm *tracing) Scoreboard(ctx context.Context, id string, live bool) ([]scorer.Entry, error) {
	ctx, span := tm.tracer.Start(ctx, "scoreboard", trace.WithAttributes(
		attribute.String("id", id),
		attribute.Bool("live", live),
	))
	defer span.End()

	return tm.svc.Scoreboard(ctx, id, live)
}

func (tm *tracing) Submit(ctx context.Context, id string, req manager.SubmitRequest) (res manager.SubmitResult, err error) {
	ctx, span := tm.tracer.Start(ctx, "submit", trace.WithAttributes(
		attribute.String("id", id),
		attribute.String("username", req.Username),
		attribute.String("problem_id", req.ProblemID),
		attribute.String("language", req.Language),
	))
	defer func() {
		span.SetAttributes(attribute.String("result", res.String()))
		span.End()
	}()

	return tm.svc.Submit(ctx, id, req)
}

func (tm *tracing) Reload(ctx context.Context, id string) (manager.HostState, error) {
	ctx, span := tm.tracer.Start(ctx, "reload", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.Reload(ctx, id)
}

func (tm *tracing) EndContest(ctx context.Context, id string, complete bool) error {
	ctx, span := tm.tracer.Start(ctx, "end-contest", trace.WithAttributes(
		attribute.String("id", id),
		attribute.Bool("complete", complete),
	))
	defer span.End()

	return tm.svc.EndContest(ctx, id, complete)
}

func (tm *tracing) Discover(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "discover")
	defer span.End()

	return tm.svc.Discover(ctx)
}

func (tm *tracing) JudgeStats(ctx context.Context) grader.Stats {
	ctx, span := tm.tracer.Start(ctx, "judge-stats")
	defer span.End()

	return tm.svc.JudgeStats(ctx)
}

func (tm *tracing) Start(ctx context.Context) error {
	return tm.svc.Start(ctx)
}

func (tm *tracing) Close(ctx context.Context) error {
	return tm.svc.Close(ctx)
}
