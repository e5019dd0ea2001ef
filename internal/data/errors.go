package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrTraceNotFound is returned when no job trace exists for a message id.
	// Distinct from a trace stored with status not_found, which is a real record.
	ErrTraceNotFound = errors.New("job trace not found")
	// ErrPropertyNotFound is returned when no property exists for a URL or id.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrWatchNotFound is returned when no watch link exists for a user and
	// property pair.
	ErrWatchNotFound = errors.New("watch link not found")
	// ErrLinkTargetMissing is returned when a watch link names a user or
	// property that no longer exists.
	ErrLinkTargetMissing = errors.New("watch link references a missing user or property")
)

// isForeignKeyViolation reports whether err is a Postgres foreign key
// constraint failure.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
