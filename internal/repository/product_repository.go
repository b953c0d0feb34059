package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"product-service/internal/apperr"
	"product-service/internal/logger"
	"product-service/internal/model"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

// DefaultListLimit is the fixed window returned by ListRecent.
const DefaultListLimit = 100

const (
	listRecentSQL = `SELECT id, name, price, stock FROM products ORDER BY id DESC LIMIT $1`
	getByIDSQL    = `SELECT id, name, price, stock FROM products WHERE id = $1`
	insertSQL     = `INSERT INTO products (name, price, stock) VALUES ($1, $2, $3) RETURNING id, name, price, stock`
)

// Queryer is the part of a borrowed connection the repository needs.
// *sqlx.Conn, *sqlx.DB and *sqlx.Tx satisfy it.
type Queryer interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// ProductRepository runs single-statement product queries on a connection it is handed.
// It never acquires or releases connections itself.
type ProductRepository struct{}

var ProductRepositoryTracer = otel.Tracer("ProductRepository")

func NewProductRepository() *ProductRepository {
	return &ProductRepository{}
}

// ListRecent returns at most limit products, newest first. A limit below 1 uses DefaultListLimit.
func (r *ProductRepository) ListRecent(ctx context.Context, q Queryer, limit int) ([]model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.ListRecent")
	defer span.End()
	logger.Debug(ctx, "Repository")

	if limit < 1 {
		limit = DefaultListLimit
	}

	products := []model.Product{}
	if err := q.SelectContext(ctx, &products, listRecentSQL, limit); err != nil {
		span.RecordError(err)
		return nil, classify("list products", err)
	}
	return products, nil
}

// GetByID returns apperr.ErrNotFound when no row has the id.
func (r *ProductRepository) GetByID(ctx context.Context, q Queryer, id int64) (model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()
	logger.Debug(ctx, "Repository")

	var product model.Product
	err := q.GetContext(ctx, &product, getByIDSQL, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, fmt.Errorf("product %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		span.RecordError(err)
		return model.Product{}, classify("get product", err)
	}
	return product, nil
}

// Create inserts one row and returns it as stored, id included.
func (r *ProductRepository) Create(ctx context.Context, q Queryer, p model.NewProduct) (model.Product, error) {
	ctx, span := ProductRepositoryTracer.Start(ctx, "ProductRepository.Create")
	defer span.End()
	logger.Debug(ctx, "Repository")

	var product model.Product
	if err := q.GetContext(ctx, &product, insertSQL, p.Name, p.Price, p.Stock); err != nil {
		span.RecordError(err)
		return model.Product{}, classify("insert product", err)
	}
	return product, nil
}

// classify separates data the store refused (SQLSTATE class 22 or 23) from every other failure.
func classify(op string, err error) error {
	if class := sqlStateClass(err); class == "22" || class == "23" {
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrConstraint, err)
	}
	return fmt.Errorf("%s: %w: %w", op, apperr.ErrBackend, err)
}

func sqlStateClass(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code.Class())
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		return pgErr.Code[:2]
	}
	return ""
}
