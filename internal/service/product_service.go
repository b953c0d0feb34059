package service

import (
	"context"
	"time"

	"product-service/internal/database"
	"product-service/internal/logger"
	"product-service/internal/model"
	"product-service/internal/repository"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
)

// ProductService borrows one connection per call, runs one repository statement on it and
// returns the connection before handing back the result.
type ProductService struct {
	pool         *database.Pool
	repo         *repository.ProductRepository
	queryTimeout time.Duration
}

var ProductServiceTracer = otel.Tracer("ProductService")

// NewProductService wires the pool and repository. queryTimeout bounds each statement; zero
// leaves it to the store.
func NewProductService(pool *database.Pool, repo *repository.ProductRepository, queryTimeout time.Duration) *ProductService {
	return &ProductService{pool: pool, repo: repo, queryTimeout: queryTimeout}
}

// workContext detaches statement execution from the caller: a client that hangs up does not
// abort a statement already running on a borrowed connection.
func (s *ProductService) workContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *ProductService) List(ctx context.Context) ([]model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.List")
	defer span.End()
	logger.Debug(ctx, "Service")

	workCtx, cancel := s.workContext(ctx)
	defer cancel()

	var products []model.Product
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		products, err = s.repo.ListRecent(workCtx, conn, repository.DefaultListLimit)
		return err
	})
	return products, err
}

func (s *ProductService) GetByID(ctx context.Context, id int64) (model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.GetByID")
	defer span.End()
	logger.Debug(ctx, "Service")

	workCtx, cancel := s.workContext(ctx)
	defer cancel()

	var product model.Product
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		product, err = s.repo.GetByID(workCtx, conn, id)
		return err
	})
	return product, err
}

func (s *ProductService) Create(ctx context.Context, p model.NewProduct) (model.Product, error) {
	ctx, span := ProductServiceTracer.Start(ctx, "ProductService.Create")
	defer span.End()
	logger.Debug(ctx, "Service")

	workCtx, cancel := s.workContext(ctx)
	defer cancel()

	var product model.Product
	err := s.pool.WithConn(ctx, func(conn *sqlx.Conn) error {
		var err error
		product, err = s.repo.Create(workCtx, conn, p)
		return err
	})
	return product, err
}
