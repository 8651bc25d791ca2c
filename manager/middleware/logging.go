package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/scorer"
)

var _ manager.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    manager.Service
}

func Logging(logger *slog.Logger, svc manager.Service) manager.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) ListContests(ctx context.Context) (resp []manager.HostState, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("running", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List contests failed", args...)

			return
		}
		lm.logger.Info("List contests completed successfully", args...)
	}(time.Now())

	return lm.svc.ListContests(ctx)
}

func (lm *loggingMiddleware) GetContest(ctx context.Context, id string) (resp manager.HostState, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("contest",
				slog.String("id", id),
				slog.Int("index", resp.Index),
				slog.Bool("active", resp.Active),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get contest failed", args...)

			return
		}
		lm.logger.Info("Get contest completed successfully", args...)
	}(time.Now())

	return lm.svc.GetContest(ctx, id)
}

func (lm *loggingMiddleware) Scoreboard(ctx context.Context, id string, live bool) (resp []scorer.Entry, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contest", id),
			slog.Bool("live", live),
			slog.Int("teams", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get scoreboard failed", args...)

			return
		}
		lm.logger.Info("Get scoreboard completed successfully", args...)
	}(time.Now())

	return lm.svc.Scoreboard(ctx, id, live)
}

func (lm *loggingMiddleware) Submit(ctx context.Context, id string, req manager.SubmitRequest) (res manager.SubmitResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("submission",
				slog.String("contest", id),
				slog.String("username", req.Username),
				slog.String("problem", req.ProblemID),
				slog.String("language", req.Language),
				slog.Int("size", len(req.File)),
				slog.String("result", res.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit failed", args...)

			return
		}
		lm.logger.Info("Submit completed successfully", args...)
	}(time.Now())

	return lm.svc.Submit(ctx, id, req)
}

func (lm *loggingMiddleware) Reload(ctx context.Context, id string) (resp manager.HostState, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contest", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reload contest failed", args...)

			return
		}
		lm.logger.Info("Reload contest completed successfully", args...)
	}(time.Now())

	return lm.svc.Reload(ctx, id)
}

func (lm *loggingMiddleware) EndContest(ctx context.Context, id string, complete bool) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("contest", id),
			slog.Bool("complete", complete),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("End contest failed", args...)

			return
		}
		lm.logger.Info("End contest completed successfully", args...)
	}(time.Now())

	return lm.svc.EndContest(ctx, id, complete)
}

func (lm *loggingMiddleware) Discover(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Discover contests failed", args...)

			return
		}
		lm.logger.Debug("Discover contests completed successfully", args...)
	}(time.Now())

	return lm.svc.Discover(ctx)
}

func (lm *loggingMiddleware) JudgeStats(ctx context.Context) grader.Stats {
	return lm.svc.JudgeStats(ctx)
}

func (lm *loggingMiddleware) Start(ctx context.Context) error {
	return lm.svc.Start(ctx)
}

func (lm *loggingMiddleware) Close(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Close manager failed", args...)

			return
		}
		lm.logger.Info("Close manager completed successfully", args...)
	}(time.Now())

	return lm.svc.Close(ctx)
}
