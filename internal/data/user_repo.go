package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/mansionwatch/mansion-watch/internal/data/pgxutil"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// UserRepoConfig holds configuration options for the user repository.
type UserRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// UserRepo provides database operations for LINE follower records.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewUserRepo creates a new UserRepo with the given database connection and configuration.
func NewUserRepo(db *sql.DB, cfg UserRepoConfig) *UserRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &UserRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

// EnsureUser registers a LINE follower if unseen. The second return value
// reports whether the row was created by this call; re-follows return the
// existing record with created=false.
func (r *UserRepo) EnsureUser(ctx context.Context, lineUserID string) (*model.User, bool, error) {
	if err := model.ValidateLineUserID(lineUserID); err != nil {
		return nil, false, err
	}

	now := r.timeProvider.Now().UTC()

	var user *model.User
	var created bool
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users AS u (line_user_id, created_at, updated_at)
			VALUES ($1, $2, $2)
			ON CONFLICT (line_user_id) DO UPDATE SET
				updated_at = EXCLUDED.updated_at
			RETURNING id, line_user_id, created_at, updated_at, (xmax = 0) AS inserted
		`, lineUserID, now)
		if err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		defer rows.Close()

		type ensuredUser struct {
			model.User
			Inserted bool `db:"inserted"`
		}
		row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[ensuredUser])
		if err != nil {
			return fmt.Errorf("collect ensured user: %w", err)
		}
		user = &row.User
		created = row.Inserted
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}
