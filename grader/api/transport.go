package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/wwppc/contestd/grader"
	"github.com/wwppc/contestd/pkg/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxReportSize = 1 << 20

// MakeHandler serves the judgehost protocol. Routes are relative so the
// handler can be mounted under any base path; unknown paths answer 404.
func MakeHandler(svc grader.Service, secret string, logger *slog.Logger) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, encodeError)),
	}

	mux.Get("/get-work", otelhttp.NewHandler(kithttp.NewServer(
		getWorkEndpoint(svc),
		decodeNodeReq(secret),
		api.EncodeResponse,
		opts...,
	), "get-work").ServeHTTP)
	mux.Post("/return-work", otelhttp.NewHandler(kithttp.NewServer(
		returnWorkEndpoint(svc),
		decodeNodeReq(secret),
		api.EncodeResponse,
		opts...,
	), "return-work").ServeHTTP)
	mux.Post("/finish-work", otelhttp.NewHandler(kithttp.NewServer(
		finishWorkEndpoint(svc),
		decodeFinishWorkReq(secret),
		api.EncodeResponse,
		opts...,
	), "finish-work").ServeHTTP)

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	return mux
}

func decodeNodeReq(secret string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		node, err := authenticate(r, secret)
		if err != nil {
			return nil, err
		}

		return nodeReq{node: node}, nil
	}
}

// decodeFinishWorkReq leaves the scores empty on an unparsable body so that
// lease checks take precedence over body validation.
func decodeFinishWorkReq(secret string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		node, err := authenticate(r, secret)
		if err != nil {
			return nil, err
		}

		req := finishWorkReq{node: node}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxReportSize))
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}
		if err := json.Unmarshal(body, &req.report); err != nil {
			req.report = grader.Report{}
		}

		return req, nil
	}
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		w.Header().Set("WWW-Authenticate", "Basic")
		w.WriteHeader(http.StatusUnauthorized)
	case errors.Is(err, ErrMalformedCredentials),
		errors.Is(err, grader.ErrMalformedScores),
		errors.Is(err, apiutil.ErrValidation):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, ErrInvalidSecret):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, grader.ErrLeaseHeld),
		errors.Is(err, grader.ErrNoLease):
		w.WriteHeader(http.StatusConflict)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
