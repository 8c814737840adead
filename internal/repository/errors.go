package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Ошибки репозиториев
var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrIntegrationExists   = errors.New("active integration already exists for this credential")
	ErrHistoryFinalized    = errors.New("sync history record already finalized")
	ErrTraderNotFound      = errors.New("no trader associated with this credential")
	ErrPerformanceNotFound = errors.New("performance snapshot not found")
)

// uniqueViolation - код PostgreSQL для нарушения UNIQUE
const uniqueViolation = "23505"

// isUniqueViolation проверяет, является ли ошибка нарушением UNIQUE constraint
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, uniqueViolation)
}

// scanner - общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
