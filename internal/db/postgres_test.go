package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	wrap := func(code string) error {
		return fmt.Errorf("query: %w", &pgconn.PgError{Code: code})
	}

	assert.True(t, IsUniqueViolation(wrap("23505")))
	assert.True(t, IsForeignKeyViolation(wrap("23503")))
	assert.True(t, IsInvalidText(wrap("22P02")))

	assert.False(t, IsInvalidText(wrap("23503")))
	assert.False(t, IsForeignKeyViolation(errors.New("23503")))
	assert.False(t, IsUniqueViolation(nil))
}
