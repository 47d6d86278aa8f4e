package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("registry briefly unavailable"))
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("lock timeout"))
	wrapped := fmt.Errorf("attach source: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing content hash")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_SQLiteBusy(t *testing.T) {
	locked := []string{
		"database is locked (5) (SQLITE_BUSY)",
		"database table is locked",
	}
	for _, msg := range locked {
		err := fmt.Errorf("insert canonical: %s", msg)
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestIsTransient_SQLiteBusyThroughWraps(t *testing.T) {
	root := errors.New("database is locked (5) (SQLITE_BUSY)")
	wrapped := eris.Wrap(root, "sqlite: insert canonical")
	if !IsTransient(wrapped) {
		t.Error("expected wrapped SQLITE_BUSY to be transient")
	}
}

func TestIsTransient_SQLiteConstraintViolation(t *testing.T) {
	err := errors.New("UNIQUE constraint failed: canonical_documents.content_hash")
	if IsTransient(err) {
		t.Error("constraint violations must never retry")
	}
}

func TestIsTransient_PostgresCodes(t *testing.T) {
	transient := []string{"40001", "40P01", "55P03", "53300", "57P03", "08006", "08000"}
	for _, code := range transient {
		err := &pgconn.PgError{Code: code, Message: "server error"}
		if !IsTransient(err) {
			t.Errorf("expected SQLSTATE %s to be transient", code)
		}
	}

	permanent := []string{"23505", "42P01", "22001"}
	for _, code := range permanent {
		err := &pgconn.PgError{Code: code, Message: "server error"}
		if IsTransient(err) {
			t.Errorf("expected SQLSTATE %s to NOT be transient", code)
		}
	}
}

func TestIsTransient_WrappedPostgresError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	wrapped := eris.Wrap(pgErr, "postgres: attach source")
	if !IsTransient(wrapped) {
		t.Error("expected wrapped deadlock to be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !IsTransient(err) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"temporary failure in name resolution",
	}
	for _, p := range patterns {
		err := errors.New(p)
		if !IsTransient(err) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}

	permanent := []int{200, 201, 400, 401, 403, 404, 405, 409, 410, 422}
	for _, code := range permanent {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(errors.New("database is locked")); got != "transient" {
		t.Errorf("expected transient, got %q", got)
	}
	if got := ClassifyError(errors.New("no such file or directory")); got != "permanent" {
		t.Errorf("expected permanent, got %q", got)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
}

func TestTransientError_ErrorMessage(t *testing.T) {
	inner := errors.New("something went wrong")
	te := NewTransientError(inner)

	if te.Error() != "something went wrong" {
		t.Errorf("expected error message %q, got %q", inner.Error(), te.Error())
	}
}
