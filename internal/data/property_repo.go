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

// PropertyRepoConfig holds configuration options for the property repository.
type PropertyRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// PropertyRepo provides database operations for watched SUUMO listings.
type PropertyRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewPropertyRepo creates a new PropertyRepo with the given database connection and configuration.
func NewPropertyRepo(db *sql.DB, cfg PropertyRepoConfig) *PropertyRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &PropertyRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const propertyColumns = `
  id,
  url,
  name,
  is_active,
  large_property_description,
  small_property_description,
  image_urls,
  created_at,
  updated_at
`

// UpsertByURL stores the latest scraped state of a listing, keyed by URL.
// Descriptions and images only overwrite when the scrape produced them, so a
// sparse re-check never blanks fields a full scrape filled in earlier.
func (r *PropertyRepo) UpsertByURL(ctx context.Context, listing *model.Listing) (*model.Property, error) {
	if listing == nil {
		return nil, errors.New("listing is required")
	}
	if err := model.ValidateListingURL(listing.URL); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()

	var largeDesc, smallDesc *string
	if listing.LargePropertyDescription != "" {
		largeDesc = &listing.LargePropertyDescription
	}
	if listing.SmallPropertyDescription != "" {
		smallDesc = &listing.SmallPropertyDescription
	}

	var prop *model.Property
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO properties AS p (
				url, name, is_active,
				large_property_description, small_property_description,
				image_urls, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
			ON CONFLICT (url) DO UPDATE SET
				name                       = EXCLUDED.name,
				is_active                  = EXCLUDED.is_active,
				large_property_description = COALESCE(EXCLUDED.large_property_description, p.large_property_description),
				small_property_description = COALESCE(EXCLUDED.small_property_description, p.small_property_description),
				image_urls                 = CASE WHEN cardinality(EXCLUDED.image_urls) > 0 THEN EXCLUDED.image_urls ELSE p.image_urls END,
				updated_at                 = EXCLUDED.updated_at
			RETURNING `+propertyColumns,
			listing.URL, listing.Name, listing.IsActive,
			largeDesc, smallDesc, listing.ImageURLs, now,
		)
		if err != nil {
			return fmt.Errorf("upsert property: %w", err)
		}
		defer rows.Close()

		p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Property])
		if err != nil {
			return fmt.Errorf("collect upserted property: %w", err)
		}
		prop = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

// GetByURL retrieves a property by its listing URL.
func (r *PropertyRepo) GetByURL(ctx context.Context, url string) (*model.Property, error) {
	var prop *model.Property
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+propertyColumns+`
			FROM properties
			WHERE url = $1
		`, url)
		if err != nil {
			return fmt.Errorf("query property: %w", err)
		}
		defer rows.Close()

		p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[model.Property])
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPropertyNotFound
		}
		if err != nil {
			return fmt.Errorf("collect property: %w", err)
		}
		prop = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return prop, nil
}

// Deactivate marks a delisted property inactive. Returns false when no
// property with the URL exists.
func (r *PropertyRepo) Deactivate(ctx context.Context, url string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE properties
		SET is_active = FALSE, updated_at = $2
		WHERE url = $1
	`, url, r.timeProvider.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate property: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return ra > 0, nil
}
