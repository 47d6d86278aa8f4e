package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// TransientError marks an error as safe to retry regardless of what the
// classifier would decide on its own.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as explicitly transient.
func NewTransientError(err error) *TransientError {
	return &TransientError{Err: err}
}

// pgTransientCodes are SQLSTATE codes that clear on retry: serialization
// failure, deadlock, lock timeout, connection exhaustion, server still
// starting up.
var pgTransientCodes = map[string]bool{
	"40001": true,
	"40P01": true,
	"55P03": true,
	"53300": true,
	"57P03": true,
}

// IsTransient returns true if the error (or any error in its chain) is worth
// retrying. Lock contention, serialization failures, and connection faults
// qualify; constraint violations and malformed input never do.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Explicit override in the chain.
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	// Postgres server errors carry a SQLSTATE. Class 08 is connection
	// exceptions.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgTransientCodes[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08")
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	// Network-level transient errors.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// SQLite reports lock contention as text; the driver exposes no
	// sentinel to errors.Is against.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"temporary failure in name resolution",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// ClassifyError labels an error "transient" or "permanent", so a run report
// can tell an operator whether re-running is likely to help.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
