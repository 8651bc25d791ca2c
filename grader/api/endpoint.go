package api

import (
	"context"
	"errors"

	"github.com/go-kit/kit/endpoint"
	"github.com/wwppc/contestd/grader"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

func getWorkEndpoint(svc grader.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(nodeReq)
		if !ok {
			return workRes{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return workRes{}, err
		}

		work, err := svc.GetWork(ctx, req.node)
		if err != nil {
			return workRes{}, err
		}

		return workRes{work: work}, nil
	}
}

func returnWorkEndpoint(svc grader.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(nodeReq)
		if !ok {
			return ackRes{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return ackRes{}, err
		}

		if err := svc.ReturnWork(ctx, req.node); err != nil {
			return ackRes{}, err
		}

		return ackRes{}, nil
	}
}

func finishWorkEndpoint(svc grader.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(finishWorkReq)
		if !ok {
			return ackRes{}, errors.Join(pkgerrors.ErrInvalidData, grader.ErrMalformedScores)
		}
		if err := req.validate(); err != nil {
			return ackRes{}, err
		}

		if err := svc.FinishWork(ctx, req.node, req.report); err != nil {
			return ackRes{}, err
		}

		return ackRes{}, nil
	}
}
