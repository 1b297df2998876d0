package repos

import (
	"fmt"

	"github.com/architeacher/gpstracker/internal/domain/model"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
)

type (
	// Scanner maps result rows onto the repositories' row structs. Errors
	// come back already translated into the domain taxonomy.
	Scanner interface {
		ScanAll(dst any, rows pgx.Rows) error

		// ScanOne returns notFound when rows is empty.
		ScanOne(dst any, rows pgx.Rows, notFound error) error
	}

	PgxScanner struct{}
)

func NewPgxScanner() *PgxScanner {
	return &PgxScanner{}
}

func (s *PgxScanner) ScanAll(dst any, rows pgx.Rows) error {
	if err := pgxscan.ScanAll(dst, rows); err != nil {
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}

	return nil
}

func (s *PgxScanner) ScanOne(dst any, rows pgx.Rows, notFound error) error {
	err := pgxscan.ScanOne(dst, rows)

	switch {
	case err == nil:
		return nil
	case pgxscan.NotFound(err):
		return notFound
	default:
		return fmt.Errorf("%w: %v", model.ErrDatabaseQuery, err)
	}
}
