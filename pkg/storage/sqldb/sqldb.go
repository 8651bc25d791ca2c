// Package sqldb implements the contest repository on top of any SQL database
// reachable through sqlx. Dialect packages own connection setup and schema
// migrations.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/wwppc/contestd/pkg/contest"
	pkgerrors "github.com/wwppc/contestd/pkg/errors"
)

var (
	ErrDBQuery = errors.New("database query error")
	ErrDBScan  = errors.New("database scan error")
	ErrCreate  = errors.New("create error")
	ErrUpdate  = errors.New("update error")
	ErrDelete  = errors.New("delete error")
)

type Repository struct {
	db         *sqlx.DB
	maxHistory int
}

func NewRepository(db *sqlx.DB, maxHistory int) *Repository {
	return &Repository{db: db, maxHistory: maxHistory}
}

type dbContest struct {
	ID          string `db:"id"`
	Type        string `db:"type"`
	Rounds      string `db:"rounds"`
	Exclusions  string `db:"exclusions"`
	MaxTeamSize int    `db:"max_team_size"`
	StartTime   int64  `db:"start_time"`
	EndTime     int64  `db:"end_time"`
	Public      bool   `db:"public"`
}

type dbRound struct {
	ID        string `db:"id"`
	Contest   string `db:"contest"`
	Number    int    `db:"number"`
	Problems  string `db:"problems"`
	StartTime int64  `db:"start_time"`
	EndTime   int64  `db:"end_time"`
}

type dbProblem struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Author      string         `db:"author"`
	Content     string         `db:"content"`
	TimeLimit   int            `db:"time_limit"`
	MemoryLimit int            `db:"memory_limit"`
	Solution    sql.NullString `db:"solution"`
}

type dbSubmission struct {
	ID        string `db:"id"`
	Username  string `db:"username"`
	Team      string `db:"team"`
	ProblemID string `db:"problem"`
	File      string `db:"file"`
	Language  string `db:"language"`
	Scores    string `db:"scores"`
	Time      int64  `db:"submitted_at"`
	Analysis  bool   `db:"analysis"`
	Graded    bool   `db:"graded"`
}

// where accumulates filter clauses with sqlx bind vars.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(column string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	clause, args, err := sqlx.In(column+" IN (?)", values)
	if err != nil {
		return err
	}
	w.add(clause, args...)

	return nil
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (r *Repository) selectAll(ctx context.Context, dest any, query string, w *where, order string) error {
	q := r.db.Rebind(query + w.String() + " ORDER BY " + order)
	if err := sqlx.SelectContext(ctx, r.db, dest, q, w.args...); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (r *Repository) ReadContests(ctx context.Context, filter contest.ContestFilter) ([]contest.Contest, error) {
	var w where
	if err := w.in("id", filter.IDs); err != nil {
		return nil, err
	}
	if filter.Type != "" {
		w.add("type = ?", filter.Type)
	}
	if !filter.ActiveAt.IsZero() {
		at := toMillis(filter.ActiveAt)
		w.add("start_time <= ? AND end_time > ?", at, at)
	}

	var rows []dbContest
	if err := r.selectAll(ctx, &rows, "SELECT * FROM contests", &w, "id"); err != nil {
		return nil, err
	}
	out := make([]contest.Contest, 0, len(rows))
	for _, row := range rows {
		c := contest.Contest{
			ID:          row.ID,
			Type:        row.Type,
			MaxTeamSize: row.MaxTeamSize,
			StartTime:   fromMillis(row.StartTime),
			EndTime:     fromMillis(row.EndTime),
			Public:      row.Public,
		}
		if err := jsonList(row.Rounds, &c.Rounds); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		if err := jsonList(row.Exclusions, &c.Exclusions); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		out = append(out, c)
	}

	return out, nil
}

func (r *Repository) ReadRounds(ctx context.Context, filter contest.RoundFilter) ([]contest.Round, error) {
	var w where
	if err := w.in("id", filter.IDs); err != nil {
		return nil, err
	}
	if filter.Contest != "" {
		w.add("contest = ?", filter.Contest)
	}

	var rows []dbRound
	if err := r.selectAll(ctx, &rows, "SELECT * FROM rounds", &w, "id"); err != nil {
		return nil, err
	}
	out := make([]contest.Round, 0, len(rows))
	for _, row := range rows {
		rd := contest.Round{
			ID:        row.ID,
			Contest:   row.Contest,
			Number:    row.Number,
			StartTime: fromMillis(row.StartTime),
			EndTime:   fromMillis(row.EndTime),
		}
		if err := jsonList(row.Problems, &rd.Problems); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		out = append(out, rd)
	}

	return out, nil
}

func (r *Repository) ReadProblems(ctx context.Context, filter contest.ProblemFilter) ([]contest.Problem, error) {
	var w where
	if err := w.in("id", filter.IDs); err != nil {
		return nil, err
	}

	var rows []dbProblem
	if err := r.selectAll(ctx, &rows, "SELECT * FROM problems", &w, "id"); err != nil {
		return nil, err
	}
	out := make([]contest.Problem, 0, len(rows))
	for _, row := range rows {
		p := contest.Problem{
			ID:      row.ID,
			Name:    row.Name,
			Author:  row.Author,
			Content: row.Content,
			Constraints: contest.Constraints{
				Time:   row.TimeLimit,
				Memory: row.MemoryLimit,
			},
		}
		if row.Solution.Valid {
			sol := row.Solution.String
			p.Solution = &sol
		}
		out = append(out, p)
	}

	return out, nil
}

func (r *Repository) ReadSubmissions(ctx context.Context, filter contest.SubmissionFilter) ([]contest.Submission, error) {
	var w where
	if err := w.in("id", filter.IDs); err != nil {
		return nil, err
	}
	if err := w.in("username", filter.Usernames); err != nil {
		return nil, err
	}
	if err := w.in("problem", filter.ProblemIDs); err != nil {
		return nil, err
	}
	if filter.Team != "" {
		w.add("team = ?", filter.Team)
	}
	if filter.Analysis != nil {
		w.add("analysis = ?", *filter.Analysis)
	}
	if filter.Graded {
		w.add("graded = ?", true)
	}

	var rows []dbSubmission
	if err := r.selectAll(ctx, &rows, "SELECT * FROM submissions", &w, "submitted_at, id"); err != nil {
		return nil, err
	}
	out := make([]contest.Submission, 0, len(rows))
	for _, row := range rows {
		s := contest.Submission{
			ID:        row.ID,
			Username:  row.Username,
			Team:      row.Team,
			ProblemID: row.ProblemID,
			Time:      fromMillis(row.Time),
			File:      row.File,
			Language:  row.Language,
			Analysis:  row.Analysis,
		}
		if err := jsonList(row.Scores, &s.Scores); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		out = append(out, s)
	}

	return out, nil
}

func (r *Repository) WriteSubmission(ctx context.Context, sub contest.Submission, overwrite bool) error {
	if sub.ID == "" {
		return pkgerrors.ErrEmptyKey
	}
	scores, err := jsonString(sub.Scores)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE submissions SET scores = ?, graded = ? WHERE id = ?`),
			scores, sub.Graded(), sub.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			return nil
		}

		if overwrite {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM submissions WHERE team = ? AND problem = ? AND graded = ? AND analysis = ?`),
				sub.Team, sub.ProblemID, false, sub.Analysis); err != nil {
				return fmt.Errorf("%w: %w", ErrDelete, err)
			}
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO submissions (id, username, team, problem, file, language, scores, submitted_at, analysis, graded)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			sub.ID, sub.Username, sub.Team, sub.ProblemID, sub.File, sub.Language, scores, toMillis(sub.Time), sub.Analysis, sub.Graded(),
		); err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, err)
		}

		return r.purgeHistory(ctx, tx, sub.Team)
	})
}

func (r *Repository) purgeHistory(ctx context.Context, tx *sqlx.Tx, team string) error {
	var rows []struct {
		ID   string `db:"id"`
		Time int64  `db:"submitted_at"`
	}
	if err := sqlx.SelectContext(ctx, tx, &rows, tx.Rebind(`SELECT id, submitted_at FROM submissions WHERE team = ?`), team); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	subs := make([]contest.Submission, len(rows))
	for i, row := range rows {
		subs[i] = contest.Submission{ID: row.ID, Time: fromMillis(row.Time)}
	}
	expired := contest.ExpiredHistory(subs, r.maxHistory)
	if len(expired) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM submissions WHERE id IN (?)`, expired)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}

	return nil
}

func (r *Repository) FinishContest(ctx context.Context, contestID string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO past_registrations (team, contest)
			SELECT team, contest FROM registrations WHERE contest = ?
			ON CONFLICT DO NOTHING`), contestID); err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, err)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM registrations WHERE contest = ?`), contestID); err != nil {
			return fmt.Errorf("%w: %w", ErrDelete, err)
		}

		return nil
	})
}

func (r *Repository) GetAllRegisteredUsers(ctx context.Context, contestID string) ([]string, error) {
	users := []string{}
	query := r.db.Rebind(`SELECT DISTINCT m.username FROM team_members m
		JOIN registrations g ON g.team = m.team
		WHERE g.contest = ? ORDER BY m.username`)
	if err := sqlx.SelectContext(ctx, r.db, &users, query, contestID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return users, nil
}

func (r *Repository) GetTeamData(ctx context.Context, teamOrUser string) (contest.Team, error) {
	if teamOrUser == "" {
		return contest.Team{}, pkgerrors.ErrEmptyKey
	}

	var t contest.Team
	err := sqlx.GetContext(ctx, r.db, &t.ID, r.db.Rebind(`SELECT id FROM teams WHERE id = ?`), teamOrUser)
	if errors.Is(err, sql.ErrNoRows) {
		err = sqlx.GetContext(ctx, r.db, &t.ID, r.db.Rebind(`SELECT team FROM team_members WHERE username = ?`), teamOrUser)
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return contest.Team{}, fmt.Errorf("team of %q: %w", teamOrUser, pkgerrors.ErrNotFound)
	case err != nil:
		return contest.Team{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	if err := sqlx.GetContext(ctx, r.db, &t.Name, r.db.Rebind(`SELECT name FROM teams WHERE id = ?`), t.ID); err != nil {
		return contest.Team{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	lists := []struct {
		dest  *[]string
		query string
	}{
		{&t.Members, `SELECT username FROM team_members WHERE team = ? ORDER BY username`},
		{&t.Registrations, `SELECT contest FROM registrations WHERE team = ? ORDER BY contest`},
		{&t.PastRegistrations, `SELECT contest FROM past_registrations WHERE team = ? ORDER BY contest`},
	}
	for _, l := range lists {
		if err := sqlx.SelectContext(ctx, r.db, l.dest, r.db.Rebind(l.query), t.ID); err != nil {
			return contest.Team{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
		}
		if len(*l.dest) == 0 {
			*l.dest = nil
		}
	}

	return t, nil
}

func (r *Repository) SaveContest(ctx context.Context, c contest.Contest) error {
	rounds, err := jsonString(nonNil(c.Rounds))
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	exclusions, err := jsonString(nonNil(c.Exclusions))
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	query := r.db.Rebind(`INSERT INTO contests (id, type, rounds, exclusions, max_team_size, start_time, end_time, public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET type = excluded.type, rounds = excluded.rounds, exclusions = excluded.exclusions,
			max_team_size = excluded.max_team_size, start_time = excluded.start_time, end_time = excluded.end_time, public = excluded.public`)
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Type, rounds, exclusions, c.MaxTeamSize,
		toMillis(c.StartTime), toMillis(c.EndTime), c.Public); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *Repository) SaveRound(ctx context.Context, rd contest.Round) error {
	problems, err := jsonString(nonNil(rd.Problems))
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	query := r.db.Rebind(`INSERT INTO rounds (id, contest, number, problems, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET contest = excluded.contest, number = excluded.number, problems = excluded.problems,
			start_time = excluded.start_time, end_time = excluded.end_time`)
	if _, err := r.db.ExecContext(ctx, query, rd.ID, rd.Contest, rd.Number, problems,
		toMillis(rd.StartTime), toMillis(rd.EndTime)); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *Repository) SaveProblem(ctx context.Context, p contest.Problem) error {
	var solution sql.NullString
	if p.Solution != nil {
		solution = sql.NullString{String: *p.Solution, Valid: true}
	}
	query := r.db.Rebind(`INSERT INTO problems (id, name, author, content, time_limit, memory_limit, solution)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, author = excluded.author, content = excluded.content,
			time_limit = excluded.time_limit, memory_limit = excluded.memory_limit, solution = excluded.solution`)
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Author, p.Content,
		p.Constraints.Time, p.Constraints.Memory, solution); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *Repository) SaveTeam(ctx context.Context, t contest.Team) error {
	if t.ID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO teams (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`), t.ID, t.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrCreate, err)
		}
		sets := []struct {
			table  string
			column string
			values []string
		}{
			{"team_members", "username", t.Members},
			{"registrations", "contest", t.Registrations},
			{"past_registrations", "contest", t.PastRegistrations},
		}
		for _, s := range sets {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+s.table+` WHERE team = ?`), t.ID); err != nil {
				return fmt.Errorf("%w: %w", ErrDelete, err)
			}
			for _, v := range slices.Compact(slices.Sorted(slices.Values(s.values))) {
				if _, err := tx.ExecContext(ctx, tx.Rebind(`INSERT INTO `+s.table+` (team, `+s.column+`) VALUES (?, ?)`), t.ID, v); err != nil {
					return fmt.Errorf("%w: %w", ErrCreate, err)
				}
			}
		}

		return nil
	})
}

func (r *Repository) RegisterTeam(ctx context.Context, teamID, contestID string) error {
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, r.db.Rebind(`SELECT COUNT(*) FROM teams WHERE id = ?`), teamID); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if count == 0 {
		return fmt.Errorf("team %q: %w", teamID, pkgerrors.ErrNotFound)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO registrations (team, contest) VALUES (?, ?)
		ON CONFLICT DO NOTHING`), teamID, contestID); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}

		return err
	}

	return tx.Commit()
}
