package sqlite

import (
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/wwppc/contestd/pkg/storage/sqldb"
)

var ErrDBConnection = errors.New("database connection error")

type Database struct {
	*sqlx.DB
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	// sqlite serialises writers; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

// NewRepository returns the contest repository backed by db, keeping at most
// maxHistory submissions per team.
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
						id TEXT PRIMARY KEY,
						type TEXT NOT NULL,
						rounds TEXT NOT NULL DEFAULT '[]',
						exclusions TEXT NOT NULL DEFAULT '[]',
						max_team_size INTEGER NOT NULL DEFAULT 0,
						start_time INTEGER NOT NULL,
						end_time INTEGER NOT NULL,
						public BOOLEAN NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contests_window ON contests(start_time, end_time)`,
					`CREATE TABLE IF NOT EXISTS rounds (
						id TEXT PRIMARY KEY,
						contest TEXT NOT NULL,
						number INTEGER NOT NULL,
						problems TEXT NOT NULL DEFAULT '[]',
						start_time INTEGER NOT NULL,
						end_time INTEGER NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_rounds_contest ON rounds(contest)`,
					`CREATE TABLE IF NOT EXISTS problems (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						author TEXT NOT NULL DEFAULT '',
						content TEXT NOT NULL DEFAULT '',
						time_limit INTEGER NOT NULL,
						memory_limit INTEGER NOT NULL,
						solution TEXT
					)`,
					`CREATE TABLE IF NOT EXISTS submissions (
						id TEXT PRIMARY KEY,
						username TEXT NOT NULL,
						team TEXT NOT NULL,
						problem TEXT NOT NULL,
						file TEXT NOT NULL,
						language TEXT NOT NULL,
						scores TEXT NOT NULL DEFAULT '[]',
						submitted_at INTEGER NOT NULL,
						analysis BOOLEAN NOT NULL DEFAULT 0,
						graded BOOLEAN NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_submissions_team ON submissions(team, submitted_at DESC)`,
					`CREATE INDEX IF NOT EXISTS idx_submissions_username ON submissions(username)`,
					`CREATE TABLE IF NOT EXISTS teams (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS team_members (
						team TEXT NOT NULL,
						username TEXT PRIMARY KEY,
						FOREIGN KEY (team) REFERENCES teams(id) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS registrations (
						team TEXT NOT NULL,
						contest TEXT NOT NULL,
						PRIMARY KEY (team, contest),
						FOREIGN KEY (team) REFERENCES teams(id) ON DELETE CASCADE
					)`,
					`CREATE INDEX IF NOT EXISTS idx_registrations_contest ON registrations(contest)`,
					`CREATE TABLE IF NOT EXISTS past_registrations (
						team TEXT NOT NULL,
						contest TEXT NOT NULL,
						PRIMARY KEY (team, contest),
						FOREIGN KEY (team) REFERENCES teams(id) ON DELETE CASCADE
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS past_registrations`,
					`DROP INDEX IF EXISTS idx_registrations_contest`,
					`DROP TABLE IF EXISTS registrations`,
					`DROP TABLE IF EXISTS team_members`,
					`DROP TABLE IF EXISTS teams`,
					`DROP INDEX IF EXISTS idx_submissions_username`,
					`DROP INDEX IF EXISTS idx_submissions_team`,
					`DROP TABLE IF EXISTS submissions`,
					`DROP TABLE IF EXISTS problems`,
					`DROP INDEX IF EXISTS idx_rounds_contest`,
					`DROP TABLE IF EXISTS rounds`,
					`DROP INDEX IF EXISTS idx_contests_window`,
					`DROP TABLE IF EXISTS contests`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("database migration error: %w", err)
	}

	return nil
}
