package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgErrCode extracts the Postgres SQLSTATE from err, or "" if err did not
// originate from the server (connection failure, context cancellation).
func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
