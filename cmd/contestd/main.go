package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/wwppc/contestd"
	"github.com/wwppc/contestd/grader"
	graderapi "github.com/wwppc/contestd/grader/api"
	"github.com/wwppc/contestd/manager"
	"github.com/wwppc/contestd/manager/api"
	"github.com/wwppc/contestd/manager/middleware"
	"github.com/wwppc/contestd/pkg/mqtt"
	"github.com/wwppc/contestd/pkg/storage"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "contestd"
	defHTTPPort   = "7070"
	envPrefixHTTP = "CONTESTD_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel      string  `env:"CONTESTD_LOG_LEVEL"        envDefault:"info"`
	InstanceID    string  `env:"CONTESTD_INSTANCE_ID"`
	ConfigFile    string  `env:"CONTESTD_CONTESTS_CONFIG"  envDefault:"./contests.toml"`
	GraderPath    string  `env:"CONTESTD_GRADER_PATH"      envDefault:"/judge"`
	GraderSecret  string  `env:"CONTESTD_GRADER_SECRET"    envDefault:"secret"`
	OperatorToken string  `env:"CONTESTD_OPERATOR_TOKEN"`
	OTELURL       url.URL `env:"CONTESTD_OTEL_URL"`
	TraceRatio    float64 `env:"CONTESTD_TRACE_RATIO"      envDefault:"0"`
	Storage       storage.Config
	Grader        grader.Config  `envPrefix:"CONTESTD_GRADER_"`
	Manager       manager.Config `envPrefix:"CONTESTD_"`
	MQTT          mqtt.Config    `envPrefix:"CONTESTD_MQTT_"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	contests, err := loadContests(cfg.ConfigFile, logger)
	if err != nil {
		logger.Error("failed to load contest configuration", slog.String("error", err.Error()))

		return
	}
	if _, ok := os.LookupEnv("CONTESTD_MAX_SUBMISSION_HISTORY"); !ok {
		cfg.Storage.MaxSubmissionHistory = contests.MaxSubmissionHistory
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, "", cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	backend, err := storage.NewRepository(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	if backend.Closer != nil {
		defer backend.Closer.Close()
	}

	gsvc := grader.NewService(cfg.Grader, backend.Repository, logger)
	promclient.MustRegister(grader.NewCollector(gsvc))

	notifier := manager.NewNoopNotifier()
	if cfg.MQTT.URL != "" {
		pubsub, err := mqtt.NewPubSub(cfg.MQTT, cfg.InstanceID, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect mqtt pubsub", slog.Any("error", err))
			}
		}()
		notifier = manager.NewMQTTNotifier(pubsub, cfg.MQTT.TopicPrefix)
	}

	svc, err := manager.NewService(cfg.Manager, *contests, backend.Repository, gsvc, notifier, logger)
	if err != nil {
		logger.Error("failed to create manager service", slog.String("error", err.Error()))

		return
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	judge := graderapi.MakeHandler(gsvc, cfg.GraderSecret, logger)
	apiConfig := api.Config{
		GraderPath:    cfg.GraderPath,
		OperatorToken: cfg.OperatorToken,
		MaxSubmitBody: api.SubmitBodyLimit(contests.MaxSubmissionSize()),
	}
	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, judge, apiConfig, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return gsvc.Start(ctx)
	})

	g.Go(func() error {
		return svc.Start(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}

	if err := svc.Close(context.Background()); err != nil {
		logger.Warn("failed to close manager service", slog.Any("error", err))
	}
}

// loadContests reads the contest type file. A missing file yields a single
// "default" type with default options.
func loadContests(path string, logger *slog.Logger) (*contestd.Config, error) {
	cfg, err := contestd.LoadConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("contest configuration file not found, using defaults", slog.String("path", path))

		return &contestd.Config{
			MaxSubmissionHistory: contestd.DefaultMaxSubmissionHistory,
			Contests:             map[string]contestd.ContestConfig{"default": contestd.DefaultContestConfig()},
		}, nil
	case err != nil:
		return nil, err
	}

	logger.Info("loaded contest configuration", slog.String("path", path), slog.Any("types", cfg.ContestTypes()))

	return cfg, nil
}
