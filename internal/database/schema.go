package database

import (
	"context"
	"fmt"

	"product-service/internal/logger"

	"github.com/jmoiron/sqlx"
)

const productsSchema = `
CREATE TABLE IF NOT EXISTS products (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    price NUMERIC(10,2) NOT NULL,
    stock INT NOT NULL DEFAULT 0
)`

// EnsureSchema creates the products table when it is missing. Running it against an
// initialized store is a no-op.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	err := pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		_, err := conn.ExecContext(ctx, productsSchema)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure products schema: %w", err)
	}
	logger.Info(ctx, "Products schema ready")
	return nil
}
