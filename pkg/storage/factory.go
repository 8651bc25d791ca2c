package storage

import (
	"fmt"
	"io"

	"github.com/wwppc/contestd/pkg/storage/badger"
	"github.com/wwppc/contestd/pkg/storage/postgres"
	"github.com/wwppc/contestd/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"CONTESTD_STORAGE_TYPE" envDefault:"memory"`

	// MaxSubmissionHistory bounds the submissions kept per team.
	MaxSubmissionHistory int `env:"CONTESTD_MAX_SUBMISSION_HISTORY" envDefault:"24"`

	PostgresHost    string `env:"CONTESTD_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"CONTESTD_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"CONTESTD_POSTGRES_USER"    envDefault:"contestd"`
	PostgresPass    string `env:"CONTESTD_POSTGRES_PASS"    envDefault:"contestd"`
	PostgresDB      string `env:"CONTESTD_POSTGRES_DB"      envDefault:"contestd"`
	PostgresSSLMode string `env:"CONTESTD_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"CONTESTD_SQLITE_PATH" envDefault:"./contestd.db"`

	BadgerPath string `env:"CONTESTD_BADGER_PATH" envDefault:"./data/badger"`
}

// Backend bundles a repository with the handle that releases its storage.
// Closer is nil for the in-memory backend.
type Backend struct {
	Repository AdminRepository
	Closer     io.Closer
}

func NewRepository(cfg Config) (*Backend, error) {
	switch cfg.Type {
	case "postgres":
		db, err := postgres.NewDatabase(postgres.Config{
			Host:    cfg.PostgresHost,
			Port:    cfg.PostgresPort,
			User:    cfg.PostgresUser,
			Pass:    cfg.PostgresPass,
			Name:    cfg.PostgresDB,
			SSLMode: cfg.PostgresSSLMode,
		})
		if err != nil {
			return nil, err
		}

		return &Backend{Repository: postgres.NewRepository(db, cfg.MaxSubmissionHistory), Closer: db}, nil
	case "sqlite":
		db, err := sqlite.NewDatabase(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}

		return &Backend{Repository: sqlite.NewRepository(db, cfg.MaxSubmissionHistory), Closer: db}, nil
	case "badger":
		db, err := badger.NewDatabase(cfg.BadgerPath)
		if err != nil {
			return nil, err
		}

		return &Backend{Repository: badger.NewRepository(db, cfg.MaxSubmissionHistory), Closer: db}, nil
	case "memory":
		return &Backend{Repository: NewMemoryRepository(cfg.MaxSubmissionHistory)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, cfg.Type)
	}
}
