package api

import (
	"context"
	"errors"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
	"github.com/wwppc/contestd/manager"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

func listContestsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		states, err := svc.ListContests(ctx)
		if err != nil {
			return listContestsResponse{}, err
		}

		return listContestsResponse{
			Total:    len(states),
			Contests: states,
		}, nil
	}
}

func getContestEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return contestResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return contestResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		st, err := svc.GetContest(ctx, req.id)
		if err != nil {
			return contestResponse{}, err
		}

		return contestResponse{HostState: st}, nil
	}
}

func scoreboardEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(scoreboardReq)
		if !ok {
			return scoreboardResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return scoreboardResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		entries, err := svc.Scoreboard(ctx, req.id, req.live)
		if err != nil {
			return scoreboardResponse{}, err
		}

		return scoreboardResponse{
			Contest: req.id,
			Live:    req.live,
			Entries: entries,
		}, nil
	}
}

func submitEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(submitReq)
		if !ok {
			return submitResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return submitResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Submit(ctx, req.id, req.SubmitRequest)
		if err != nil {
			return submitResponse{}, err
		}

		return submitResponse{Result: res}, nil
	}
}

func reloadEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return contestResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return contestResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		st, err := svc.Reload(ctx, req.id)
		if err != nil {
			return contestResponse{}, err
		}

		return contestResponse{HostState: st}, nil
	}
}

func endContestEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(endReq)
		if !ok {
			return endResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return endResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		if err := svc.EndContest(ctx, req.id, req.complete); err != nil {
			return endResponse{}, err
		}

		return endResponse{}, nil
	}
}

func discoverEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		if err := svc.Discover(ctx); err != nil {
			return listContestsResponse{}, err
		}
		states, err := svc.ListContests(ctx)
		if err != nil {
			return listContestsResponse{}, err
		}

		return listContestsResponse{
			Total:    len(states),
			Contests: states,
		}, nil
	}
}

func judgeStatsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		return judgeStatsResponse{Stats: svc.JudgeStats(ctx)}, nil
	}
}
