package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"product-service/internal/apperr"
	"product-service/internal/database"
	"product-service/internal/metrics"
	"product-service/internal/repository"
	"product-service/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productColumns = []string{"id", "name", "price", "stock"}

type testServer struct {
	handler http.Handler
	pool    *database.Pool
	mock    sqlmock.Sqlmock
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	pool := database.New(db, "sqlmock", database.Options{MaxConns: 2})
	t.Cleanup(func() { _ = pool.Close() })

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	recorder.WatchPool(pool)

	svc := service.NewProductService(pool, repository.NewProductRepository(), 0)
	h := NewRouter(RouterDeps{
		Products: NewProductHandler(svc),
		Health:   NewHealthHandler(),
		Recorder: recorder,
		Gatherer: reg,
	})
	return &testServer{handler: h, pool: pool, mock: mock}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *testServer) assertNoLeak(t *testing.T) {
	t.Helper()
	st := s.pool.Stats()
	assert.Equal(t, int64(0), st.InUse)
	assert.Equal(t, st.Acquired, st.Released)
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	rr := s.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
	assert.Equal(t, int64(0), s.pool.Stats().Acquired)
}

func TestCreateGetScenario(t *testing.T) {
	s := setupServer(t)
	want := `{"id":1,"name":"Widget","price":9.99,"stock":5}`

	s.mock.ExpectQuery("INSERT INTO products").
		WithArgs("Widget", "9.99", int64(5)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Widget", "9.99", 5))
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Widget", "9.99", 5))
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(productColumns))

	rr := s.do(http.MethodPost, "/products", `{"name":"Widget","price":9.99,"stock":5}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, want, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = s.do(http.MethodGet, "/products/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, want, rr.Body.String())

	rr = s.do(http.MethodGet, "/products/999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"not_found","detail":"product 999: not found"}`, rr.Body.String())

	require.NoError(t, s.mock.ExpectationsWereMet())
	s.assertNoLeak(t)
}

func TestCreateStockDefaultsToZero(t *testing.T) {
	s := setupServer(t)

	s.mock.ExpectQuery("INSERT INTO products").
		WithArgs("Bolt", "0.1", int64(0)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(2, "Bolt", "0.10", 0))

	rr := s.do(http.MethodPost, "/products", `{"name":"Bolt","price":"0.10"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"id":2,"name":"Bolt","price":0.1,"stock":0}`, rr.Body.String())
}

func TestCreateAcceptsNegativeValues(t *testing.T) {
	s := setupServer(t)

	s.mock.ExpectQuery("INSERT INTO products").
		WithArgs("Refund", "-5", int64(-3)).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(3, "Refund", "-5.00", -3))

	rr := s.do(http.MethodPost, "/products", `{"name":"Refund","price":-5,"stock":-3}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestCreateNormalizesStorablePrices(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"trailing zeros":      {`{"name":"Widget","price":9.990000}`, "9.99"},
		"zero with exponent":  {`{"name":"Widget","price":0e-10000000}`, "0"},
		"largest price":       {`{"name":"Widget","price":99999999.99}`, "99999999.99"},
		"integer as exponent": {`{"name":"Widget","price":5e2}`, "500"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := setupServer(t)
			s.mock.ExpectQuery("INSERT INTO products").
				WithArgs("Widget", tc.want, int64(0)).
				WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Widget", tc.want, 0))

			rr := s.do(http.MethodPost, "/products", tc.body)

			require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
			require.NoError(t, s.mock.ExpectationsWereMet())
		})
	}
}

func TestNormalizePriceBoundsWorkOnExtremeExponents(t *testing.T) {
	for _, raw := range []string{"1e10000000", "1e-10000000", "-7e2147483000"} {
		price, err := decimal.NewFromString(raw)
		require.NoError(t, err)

		start := time.Now()
		_, err = normalizePrice(price)

		assert.ErrorIs(t, err, apperr.ErrValidation, raw)
		assert.Less(t, time.Since(start), time.Second, raw)
	}
}

func TestCreateRejectsMalformedBodiesWithoutConnection(t *testing.T) {
	cases := map[string]string{
		"missing name":     `{"price":9.99}`,
		"missing price":    `{"name":"Widget"}`,
		"blank name":       `{"name":"  ","price":1}`,
		"name not string":  `{"name":42,"price":1}`,
		"price not number": `{"name":"Widget","price":"cheap"}`,
		"price as bool":    `{"name":"Widget","price":true}`,
		"stock fraction":   `{"name":"Widget","price":1,"stock":1.5}`,
		"too precise":      `{"name":"Widget","price":9.999}`,
		"huge exponent":    `{"name":"Widget","price":1e10000000}`,
		"tiny exponent":    `{"name":"Widget","price":1e-10000000}`,
		"too large":        `{"name":"Widget","price":100000000}`,
		"too small":        `{"name":"Widget","price":-100000000.00}`,
		"long coefficient": `{"name":"Widget","price":"1` + strings.Repeat("0", 5000) + `e-4990"}`,
		"not json":         `name=Widget`,
		"array":            `[{"name":"Widget","price":1}]`,
		"null":             `null`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			s := setupServer(t)

			rr := s.do(http.MethodPost, "/products", body)

			assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
			assert.Contains(t, rr.Body.String(), `"validation_error"`)
			assert.Equal(t, int64(0), s.pool.Stats().Acquired, "no connection may be acquired for a malformed body")
			require.NoError(t, s.mock.ExpectationsWereMet())
		})
	}
}

func TestGetRejectsNonIntegerID(t *testing.T) {
	s := setupServer(t)

	rr := s.do(http.MethodGet, "/products/abc", "")

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `"invalid_id"`)
	assert.Equal(t, int64(0), s.pool.Stats().Acquired)
}

func TestListOrderedNewestFirst(t *testing.T) {
	s := setupServer(t)

	s.mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id DESC LIMIT $1")).
		WithArgs(repository.DefaultListLimit).
		WillReturnRows(sqlmock.NewRows(productColumns).
			AddRow(2, "Gadget", "1.50", 1).
			AddRow(1, "Widget", "9.99", 5))

	rr := s.do(http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"id":2,"name":"Gadget","price":1.5,"stock":1},
		{"id":1,"name":"Widget","price":9.99,"stock":5}
	]`, rr.Body.String())
	s.assertNoLeak(t)
}

func TestListEmptyIsArray(t *testing.T) {
	s := setupServer(t)

	s.mock.ExpectQuery("FROM products ORDER BY").WillReturnRows(sqlmock.NewRows(productColumns))

	rr := s.do(http.MethodGet, "/products", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestBackendErrorsReleaseConnection(t *testing.T) {
	s := setupServer(t)
	boom := errors.New("pq: terminating connection due to administrator command")

	s.mock.ExpectQuery("FROM products ORDER BY").WillReturnError(boom)
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).WillReturnError(boom)
	s.mock.ExpectQuery("INSERT INTO products").WillReturnError(boom)

	assert.Equal(t, http.StatusInternalServerError, s.do(http.MethodGet, "/products", "").Code)
	assert.Equal(t, http.StatusInternalServerError, s.do(http.MethodGet, "/products/1", "").Code)
	rr := s.do(http.MethodPost, "/products", `{"name":"Widget","price":1}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "administrator", "driver messages must not reach clients")

	s.assertNoLeak(t)
	assert.Equal(t, int64(3), s.pool.Stats().Acquired)
}

func TestPoolClosedIsServiceUnavailable(t *testing.T) {
	s := setupServer(t)
	_ = s.pool.Close()

	rr := s.do(http.MethodGet, "/products", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"pool_closed"`)
}

func TestClientGoneWhileWaitingIsNotABackendFailure(t *testing.T) {
	s := setupServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodGet, "/products", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	assert.Equal(t, apperr.StatusClientClosedRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"client_closed_request"`)
	assert.Equal(t, int64(0), s.pool.Stats().Acquired)

	body := s.do(http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/products",status="499"} 1`)
	assert.NotContains(t, body, `status="500"`)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := setupServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/orders", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodDelete, "/products/1", "").Code)
}

func TestEveryProductRequestIsRecordedOnce(t *testing.T) {
	s := setupServer(t)

	s.mock.ExpectQuery("INSERT INTO products").
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(1, "Widget", "9.99", 5))
	s.mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(productColumns))

	s.do(http.MethodPost, "/products", `{"name":"Widget","price":9.99,"stock":5}`)
	s.do(http.MethodPost, "/products", `{"price":9.99}`)
	s.do(http.MethodGet, "/products/7", "")
	s.do(http.MethodGet, "/products/x", "")
	s.do(http.MethodGet, "/health", "")

	body := s.do(http.MethodGet, "/metrics", "").Body.String()

	assert.Contains(t, body, `http_requests_total{method="POST",path="/products",status="201"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/products",status="422"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/products/{id}",status="404"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/products/{id}",status="422"} 1`)
	assert.Contains(t, body, `http_request_latency_seconds_count{method="POST",path="/products"} 2`)
	assert.Contains(t, body, `http_request_latency_seconds_count{method="GET",path="/products/{id}"} 2`)
	assert.Contains(t, body, `db_pool_in_use_connections 0`)
	assert.Contains(t, body, `db_pool_max_connections 2`)
	assert.NotContains(t, body, `path="/health"`)
	assert.NotContains(t, body, `path="/metrics"`)
}
