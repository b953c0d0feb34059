package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	pool, mock := newMockPool(t, Options{MaxConns: 1})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), pool))
	require.NoError(t, EnsureSchema(context.Background(), pool))

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int64(0), pool.Stats().InUse)
}

func TestEnsureSchemaFailureReleasesConnection(t *testing.T) {
	pool, mock := newMockPool(t, Options{MaxConns: 1})

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS products").WillReturnError(errors.New("permission denied for schema public"))

	err := EnsureSchema(context.Background(), pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, Stats{Max: 1, InUse: 0, Acquired: 1, Released: 1}, pool.Stats())
}

func TestProductsSchemaShape(t *testing.T) {
	assert.Contains(t, productsSchema, "id SERIAL PRIMARY KEY")
	assert.Contains(t, productsSchema, "price NUMERIC(10,2) NOT NULL")
	assert.Contains(t, productsSchema, "stock INT NOT NULL DEFAULT 0")
}
