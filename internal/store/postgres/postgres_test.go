package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"retailpos/backend/internal/domain"
)

func TestTxErrorMapsSerializationAborts(t *testing.T) {
	abort := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	if got := txError(abort); !errors.Is(got, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate for 40001, got %v", got)
	}

	// A mid-transaction statement wraps the abort the same way Commit does.
	wrapped := fmt.Errorf("update counter: %w", abort)
	if got := txError(wrapped); !errors.Is(got, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate for wrapped 40001, got %v", got)
	}
}

func TestTxErrorPassesOtherErrorsThrough(t *testing.T) {
	if got := txError(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}

	unique := &pgconn.PgError{Code: "23505"}
	if got := txError(unique); !errors.Is(got, unique) {
		t.Fatalf("expected unique violation untouched, got %v", got)
	}

	plain := errors.New("connection reset")
	if got := txError(plain); !errors.Is(got, plain) {
		t.Fatalf("expected plain error untouched, got %v", got)
	}
}
