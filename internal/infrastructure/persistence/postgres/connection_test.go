package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/microcourses/microcourses/internal/domain/shared"
)

func TestWrapStorageError_ConnectionFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"closed pool", ErrConnectionClosed},
		{"connection exception", &pgconn.PgError{Code: "08006"}},
		{"server shutdown", &pgconn.PgError{Code: "57P01"}},
		{"wrapped closed pool", fmt.Errorf("query: %w", ErrConnectionClosed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapStorageError("Exec", tt.err)

			assert.ErrorIs(t, wrapped, shared.ErrStorageFailure)
			assert.True(t, shared.IsRetryable(wrapped))
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

func TestWrapStorageError_SQLErrorsPassThrough(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}

	wrapped := WrapStorageError("Exec", unique)

	assert.Equal(t, error(unique), wrapped)
	assert.False(t, shared.IsRetryable(wrapped))
	assert.True(t, IsUniqueViolation(wrapped))
}

func TestWrapStorageError_Nil(t *testing.T) {
	assert.NoError(t, WrapStorageError("Exec", nil))
}

func TestWrapStorageError_NoRowsPassThrough(t *testing.T) {
	err := WrapStorageError("QueryRow", pgx.ErrNoRows)

	assert.True(t, IsNoRows(err))
	assert.False(t, shared.IsRetryable(err))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}
