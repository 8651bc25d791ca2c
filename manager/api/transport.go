package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/pkg/api"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	completeKey = "complete"

	minSubmitBody = 1 << 20
	envelopeSize  = 64 << 10
	// A JSON string escapes a raw byte into at most six bytes.
	maxEscapeRatio = 6
)

// Config holds the options of the contest API.
type Config struct {
	// GraderPath is where the judgehost protocol handler is mounted.
	GraderPath string
	// OperatorToken is the bearer token the live scoreboard requires. An
	// empty token turns the live scoreboard off.
	OperatorToken string
	MaxSubmitBody int64
}

// SubmitBodyLimit returns the request body size that still fits a submission
// file of maxSubmission bytes once it is escaped into the JSON envelope.
func SubmitBodyLimit(maxSubmission int) int64 {
	return max(minSubmitBody, int64(maxSubmission)*maxEscapeRatio+envelopeSize)
}

// MakeHandler serves the contest API. The judgehost protocol handler is
// mounted under cfg.GraderPath when given.
func MakeHandler(svc manager.Service, judge http.Handler, cfg Config, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	if cfg.MaxSubmitBody <= 0 {
		cfg.MaxSubmitBody = minSubmitBody
	}

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, encodeError)),
	}

	mux.Route("/contests", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listContestsEndpoint(svc),
			decodeNoReq,
			api.EncodeResponse,
			opts...,
		), "list-contests").ServeHTTP)
		r.Route("/{contestID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getContestEndpoint(svc),
				decodeEntityReq("contestID"),
				api.EncodeResponse,
				opts...,
			), "get-contest").ServeHTTP)
			r.Get("/scoreboard", otelhttp.NewHandler(kithttp.NewServer(
				scoreboardEndpoint(svc),
				decodeScoreboardReq(cfg.OperatorToken),
				api.EncodeResponse,
				opts...,
			), "get-scoreboard").ServeHTTP)
			r.Post("/submissions", otelhttp.NewHandler(kithttp.NewServer(
				submitEndpoint(svc),
				decodeSubmitReq(cfg.MaxSubmitBody),
				api.EncodeResponse,
				opts...,
			), "submit").ServeHTTP)
			r.Post("/reload", otelhttp.NewHandler(kithttp.NewServer(
				reloadEndpoint(svc),
				decodeEntityReq("contestID"),
				api.EncodeResponse,
				opts...,
			), "reload-contest").ServeHTTP)
			r.Post("/end", otelhttp.NewHandler(kithttp.NewServer(
				endContestEndpoint(svc),
				decodeEndReq,
				api.EncodeResponse,
				opts...,
			), "end-contest").ServeHTTP)
		})
	})

	mux.Post("/discover", otelhttp.NewHandler(kithttp.NewServer(
		discoverEndpoint(svc),
		decodeNoReq,
		api.EncodeResponse,
		opts...,
	), "discover-contests").ServeHTTP)
	mux.Get("/judge-stats", otelhttp.NewHandler(kithttp.NewServer(
		judgeStatsEndpoint(svc),
		decodeNoReq,
		api.EncodeResponse,
		opts...,
	), "judge-stats").ServeHTTP)

	if judge != nil && cfg.GraderPath != "" {
		mux.Mount(cfg.GraderPath, judge)
	}

	mux.Get("/health", supermq.Health("contestd", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeNoReq(_ context.Context, _ *http.Request) (any, error) {
	return nil, nil
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeScoreboardReq(operatorToken string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		live, err := apiutil.ReadBoolQuery(r, api.LiveKey, false)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}
		if live {
			if err := authorizeOperator(r, operatorToken); err != nil {
				return nil, err
			}
		}

		return scoreboardReq{
			id:   chi.URLParam(r, "contestID"),
			live: live,
		}, nil
	}
}

func decodeSubmitReq(limit int64) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
			return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
		}

		req := submitReq{id: chi.URLParam(r, "contestID")}
		if err := json.NewDecoder(io.LimitReader(r.Body, limit)).Decode(&req.SubmitRequest); err != nil {
			return nil, errors.Join(err, apiutil.ErrValidation)
		}

		return req, nil
	}
}

func decodeEndReq(_ context.Context, r *http.Request) (any, error) {
	complete, err := apiutil.ReadBoolQuery(r, completeKey, true)
	if err != nil {
		return nil, errors.Join(apiutil.ErrValidation, err)
	}

	return endReq{
		id:       chi.URLParam(r, "contestID"),
		complete: complete,
	}, nil
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	switch {
	case errors.Is(err, manager.ErrContestNotRunning):
		api.WriteError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrMissingToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		api.WriteError(w, http.StatusUnauthorized, err)
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrLiveDisabled):
		api.WriteError(w, http.StatusForbidden, err)
	default:
		api.EncodeError(ctx, err, w)
	}
}
