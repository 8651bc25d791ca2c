package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/wwppc/contestd/pkg/storage/sqldb"
)

const connectRetries = 5

var ErrDBConnection = errors.New("database connection error")

type Database struct {
	*sqlx.DB
}

type Config struct {
	Host    string
	Port    string
	User    string
	Pass    string
	Name    string
	SSLMode string
}

func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Pass, c.Name, c.SSLMode)
}

// NewDatabase connects to postgres, retrying with exponential backoff while
// the server comes up, and applies pending migrations.
func NewDatabase(cfg Config) (*Database, error) {
	var db *sqlx.DB
	connect := func() error {
		var err error
		db, err = sqlx.Connect("pgx", cfg.DSN())

		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func NewRepository(db *Database, maxHistory int) *sqldb.Repository {
	return sqldb.NewRepository(db.DB, maxHistory)
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_contest_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS contests (
						id VARCHAR(64) PRIMARY KEY,
						type VARCHAR(64) NOT NULL,
						rounds JSONB NOT NULL DEFAULT '[]',
						exclusions JSONB NOT NULL DEFAULT '[]',
						max_team_size INTEGER NOT NULL DEFAULT 0,
						start_time BIGINT NOT NULL,
						end_time BIGINT NOT NULL,
						public BOOLEAN NOT NULL DEFAULT FALSE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contests_window ON contests(start_time, end_time)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						id VARCHAR(64) PRIMARY KEY,
						contest VARCHAR(64) NOT NULL,
						number INTEGER NOT NULL,
						problems JSONB NOT NULL DEFAULT '[]',
						start_time BIGINT NOT NULL,
						end_time BIGINT NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_contest ON rounds(contest)`,
					`CREATE TABLE IF NOT EXISTS problems (
						id VARCHAR(64) PRIMARY KEY,
						name VARCHAR(255) NOT NULL,
						author VARCHAR(255) NOT NULL DEFAULT '',
						content TEXT NOT NULL DEFAULT '',
						time_limit INTEGER NOT NULL,
						memory_limit INTEGER NOT NULL,
						solution TEXT
					)`,
					`CREATE TABLE IF NOT EXISTS submissions (
						id VARCHAR(64) PRIMARY KEY,
						username VARCHAR(255) NOT NULL,
						team VARCHAR(64) NOT NULL,
						problem VARCHAR(64) NOT NULL,
						file TEXT NOT NULL,
						language VARCHAR(32) NOT NULL,
						scores JSONB NOT NULL DEFAULT '[]',
						submitted_at BIGINT NOT NULL,
						analysis BOOLEAN NOT NULL DEFAULT FALSE,
						graded BOOLEAN NOT NULL DEFAULT FALSE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_submissions_team ON submissions(team, submitted_at DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_submissions_username ON submissions(username)`,
					`CREATE TABLE IF NOT EXISTS teams (
						id VARCHAR(64) PRIMARY KEY,
						name VARCHAR(255) NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS team_members (
						team VARCHAR(64) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
						username VARCHAR(255) PRIMARY KEY
					)`,
					`CREATE TABLE IF NOT EXISTS registrations (
						team VARCHAR(64) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
						contest VARCHAR(64) NOT NULL,
						PRIMARY KEY (team, contest)
					)`,
					`CREATE INDEX IF NOT EXISTS idx_registrations_contest ON registrations(contest)`,
					`CREATE TABLE IF NOT EXISTS past_registrations (
						team VARCHAR(64) NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
						contest VARCHAR(64) NOT NULL,
						PRIMARY KEY (team, contest)
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS past_registrations`,
					`DROP TABLE IF EXISTS registrations`,
					`DROP TABLE IF EXISTS team_members`,
					`DROP TABLE IF EXISTS teams`,
					`DROP TABLE IF EXISTS submissions`,
					`DROP TABLE IF EXISTS problems`,
					`DROP TABLE IF EXISTS rounds`,
					`DROP TABLE IF EXISTS contests`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "postgres", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
