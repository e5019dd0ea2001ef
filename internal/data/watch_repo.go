package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/mansionwatch/mansion-watch/internal/data/pgxutil"
	"github.com/mansionwatch/mansion-watch/internal/domain/model"
)

// WatchRepoConfig holds configuration options for the watch repository.
type WatchRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// WatchRepo provides database operations for user/property watch links.
type WatchRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewWatchRepo creates a new WatchRepo with the given database connection and configuration.
func NewWatchRepo(db *sql.DB, cfg WatchRepoConfig) *WatchRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &WatchRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const userPropertyColumns = `
  id,
  line_user_id,
  property_id,
  last_checked_at,
  first_succeeded_at,
  last_succeeded_at,
  created_at,
  updated_at
`

// Link attaches a property to a user's watchlist. Linking the same pair
// twice refreshes updated_at and returns the existing link.
func (r *WatchRepo) Link(ctx context.Context, lineUserID, propertyID string) (*model.UserProperty, error) {
	if err := model.ValidateLineUserID(lineUserID); err != nil {
		return nil, err
	}
	if propertyID == "" {
		return nil, errors.New("property id is required")
	}

	now := r.timeProvider.Now().UTC()

	var link *model.UserProperty
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO user_properties (line_user_id, property_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (line_user_id, property_id) DO UPDATE SET
				updated_at = EXCLUDED.updated_at
			RETURNING `+userPropertyColumns,
			lineUserID, propertyID, now,
		)
		if err != nil {
			return fmt.Errorf("link user property: %w", err)
		}
		defer rows.Close()

		up, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.UserProperty])
		if err != nil {
			return fmt.Errorf("collect user property: %w", err)
		}
		link = up
		return nil
	})
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: property_id=%s", ErrLinkTargetMissing, propertyID)
	}
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ListUserProperties returns the properties a user watches, newest link first.
func (r *WatchRepo) ListUserProperties(ctx context.Context, lineUserID string) ([]*model.Property, error) {
	var props []*model.Property
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT p.id, p.url, p.name, p.is_active,
			       p.large_property_description, p.small_property_description,
			       p.image_urls, p.created_at, p.updated_at
			FROM user_properties up
			JOIN properties p ON p.id = up.property_id
			WHERE up.line_user_id = $1
			ORDER BY up.created_at DESC, up.id DESC
		`, lineUserID)
		if err != nil {
			return fmt.Errorf("query user properties: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Property])
		if err != nil {
			return fmt.Errorf("collect user properties: %w", err)
		}
		props = vals
		return nil
	})
	if err != nil {
		return nil, err
	}
	return props, nil
}

// DistinctUserIDs lists every user with at least one watched property. The
// batch scheduler fans one check job out per returned id.
func (r *WatchRepo) DistinctUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT line_user_id
		FROM user_properties
		ORDER BY line_user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query distinct watch users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan watch user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch user ids: %w", err)
	}
	return ids, nil
}

// TouchChecked records the outcome of a watch check on the link row. A
// successful check also advances the success timestamps; first_succeeded_at
// is only ever set once.
func (r *WatchRepo) TouchChecked(ctx context.Context, lineUserID, propertyID string, succeeded bool) error {
	now := r.timeProvider.Now().UTC()

	var res sql.Result
	var err error
	if succeeded {
		res, err = r.DB.ExecContext(ctx, `
			UPDATE user_properties
			SET last_checked_at    = $3,
			    last_succeeded_at  = $3,
			    first_succeeded_at = COALESCE(first_succeeded_at, $3),
			    updated_at         = $3
			WHERE line_user_id = $1 AND property_id = $2
		`, lineUserID, propertyID, now)
	} else {
		res, err = r.DB.ExecContext(ctx, `
			UPDATE user_properties
			SET last_checked_at = $3,
			    updated_at      = $3
			WHERE line_user_id = $1 AND property_id = $2
		`, lineUserID, propertyID, now)
	}
	if err != nil {
		return fmt.Errorf("touch watch link: %w", err)
	}

	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if ra == 0 {
		return ErrWatchNotFound
	}
	return nil
}
