package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/game"
)

// PostgresStore handles database operations
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dbURL and makes sure the schema exists
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL database")
	return store, nil
}

// initSchema creates the necessary tables. Entries deliberately carry no
// foreign key to users: deleted accounts leave orphans for the cleanup job.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username VARCHAR(50) NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			xp INTEGER NOT NULL DEFAULT 0,
			level INTEGER NOT NULL DEFAULT 1,
			coins INTEGER NOT NULL DEFAULT 0,
			hint_tokens INTEGER NOT NULL DEFAULT 0,
			correct_guesses INTEGER NOT NULL DEFAULT 0,
			total_guesses INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users (LOWER(username));

		CREATE TABLE IF NOT EXISTS leaderboard_entries (
			id TEXT PRIMARY KEY,
			submission_id TEXT UNIQUE,
			user_id TEXT NOT NULL,
			username VARCHAR(50) NOT NULL DEFAULT '',
			avatar TEXT NOT NULL DEFAULT '',
			streak INTEGER NOT NULL DEFAULT 0,
			points INTEGER NOT NULL DEFAULT 0,
			difficulty VARCHAR(16) NOT NULL,
			level INTEGER NOT NULL DEFAULT 1,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			suspicious BOOLEAN NOT NULL DEFAULT FALSE,
			tab_switches INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_played_at TIMESTAMPTZ,
			legacy_played_at TIMESTAMPTZ
		);

		CREATE INDEX IF NOT EXISTS idx_entries_user_id ON leaderboard_entries(user_id);
		CREATE INDEX IF NOT EXISTS idx_entries_created_at ON leaderboard_entries(created_at);
		CREATE INDEX IF NOT EXISTS idx_entries_streak ON leaderboard_entries(streak DESC, points DESC);
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const userColumns = `id, username, password_hash, avatar, xp, level, coins, hint_tokens,
	correct_guesses, total_guesses, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Avatar, &u.XP, &u.Level,
		&u.Coins, &u.HintTokens, &u.CorrectGuesses, &u.TotalGuesses, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores a new account
func (s *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Level = max(u.Level, 1)

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.Username, u.PasswordHash, u.Avatar, u.XP, u.Level, u.Coins,
		u.HintTokens, u.CorrectGuesses, u.TotalGuesses, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetUserByName looks a user up case-insensitively
func (s *PostgresStore) GetUserByName(ctx context.Context, username string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

// GetProfile returns the live profile of a user
func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// ListUsers returns every profile
func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// ApplyRewards adds the progress of one guess and recomputes the level
func (s *PostgresStore) ApplyRewards(ctx context.Context, userID string, p Progress) (*User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	u, err := scanUser(tx.QueryRow(ctx, `
		UPDATE users
		SET xp = xp + $2, coins = coins + $3,
		    correct_guesses = correct_guesses + $4, total_guesses = total_guesses + $5
		WHERE id = $1
		RETURNING `+userColumns, userID, p.XP, p.Coins, p.Correct, p.Guesses))
	if err != nil {
		return nil, err
	}

	if level := game.LevelForXP(u.XP); level != u.Level {
		if _, err := tx.Exec(ctx, `UPDATE users SET level = $2 WHERE id = $1`, userID, level); err != nil {
			return nil, err
		}
		u.Level = level
	}
	return u, tx.Commit(ctx)
}

// ConsumeHintToken spends one purchased hint and returns how many are left
func (s *PostgresStore) ConsumeHintToken(ctx context.Context, userID string) (int, error) {
	var left int
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET hint_tokens = hint_tokens - 1
		WHERE id = $1 AND hint_tokens > 0
		RETURNING hint_tokens`, userID).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := s.GetProfile(ctx, userID); err != nil {
			return 0, err
		}
		return 0, ErrNoHintTokens
	}
	return left, err
}

// InsertEntry stores a submitted game. A repeated submission ID is a conflict.
func (s *PostgresStore) InsertEntry(ctx context.Context, e *LeaderboardEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO leaderboard_entries (id, submission_id, user_id, username, avatar,
			streak, points, difficulty, level, accuracy, suspicious, tab_switches,
			created_at, last_played_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.SubmissionID, e.UserID, e.Username, e.Avatar, e.Streak, e.Points,
		e.Difficulty, e.Level, e.Accuracy, e.Suspicious, e.TabSwitches,
		e.CreatedAt, nullTime(e.LastPlayedAt))
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

const entryColumns = `id, COALESCE(submission_id, ''), user_id, username, avatar, streak, points,
	difficulty, level, accuracy, suspicious, tab_switches, created_at, last_played_at,
	legacy_played_at`

func scanEntry(row pgx.Row) (*LeaderboardEntry, error) {
	var e LeaderboardEntry
	var lastPlayed *time.Time
	err := row.Scan(&e.ID, &e.SubmissionID, &e.UserID, &e.Username, &e.Avatar, &e.Streak,
		&e.Points, &e.Difficulty, &e.Level, &e.Accuracy, &e.Suspicious, &e.TabSwitches,
		&e.CreatedAt, &lastPlayed, &e.LegacyDate)
	if err != nil {
		return nil, err
	}
	if lastPlayed != nil {
		e.LastPlayedAt = *lastPlayed
	}
	CanonicalEntry(&e)
	return &e, nil
}

// where renders the filter as a SQL condition with positional arguments
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.Difficulty != "" {
		args = append(args, f.Difficulty)
		conds = append(conds, fmt.Sprintf("LOWER(difficulty) = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// QueryEntries returns one page of entries in leaderboard order
func (s *PostgresStore) QueryEntries(ctx context.Context, f Filter) (*QueryResult, error) {
	where, args := f.where()

	result := &QueryResult{Entries: []LeaderboardEntry{}}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leaderboard_entries`+where, args...).Scan(&result.Total); err != nil {
		return nil, err
	}

	query := `SELECT ` + entryColumns + ` FROM leaderboard_entries` + where +
		` ORDER BY ` + f.Sort.orderClause()
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rank := f.Offset + 1
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Rank = rank
		result.Entries = append(result.Entries, *e)
		rank++
	}
	return result, rows.Err()
}

// UserRank returns the 1-based position of a player's best entry among
// every player's best entry
func (s *PostgresStore) UserRank(ctx context.Context, userID string, f Filter) (int, error) {
	where, args := f.where()
	args = append(args, userID)

	query := fmt.Sprintf(`
		WITH best AS (
			SELECT user_id,
				MAX(GREATEST(streak, 0)::float8 * 1e6 + LEAST(GREATEST(points, 0), %d)) AS score
			FROM leaderboard_entries%s
			GROUP BY user_id
		)
		SELECT 1 + (SELECT COUNT(*) FROM best b WHERE b.score > me.score)
		FROM best me WHERE me.user_id = $%d`, maxRankPoints, where, len(args))

	var rank int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&rank)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return rank, err
}

// ListEntries returns every entry, canonicalized
func (s *PostgresStore) ListEntries(ctx context.Context) ([]LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM leaderboard_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UpdateEntryDates sets last_played_at and drops the legacy date column value
func (s *PostgresStore) UpdateEntryDates(ctx context.Context, entryID string, lastPlayedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE leaderboard_entries SET last_played_at = $2, legacy_played_at = NULL
		WHERE id = $1`, entryID, lastPlayedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEntrySnapshot overwrites the denormalized profile fields of an entry
func (s *PostgresStore) UpdateEntrySnapshot(ctx context.Context, entryID string, snap Snapshot) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE leaderboard_entries SET username = $2, avatar = $3, level = $4
		WHERE id = $1`, entryID, snap.Username, snap.Avatar, snap.Level)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEntries removes entries by ID and returns how many were deleted
func (s *PostgresStore) DeleteEntries(ctx context.Context, entryIDs []string) (int, error) {
	if len(entryIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM leaderboard_entries WHERE id = ANY($1)`, entryIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Close closes the database connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}
