package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"product-service/internal/apperr"
	"product-service/internal/logger"
	"product-service/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// ProductService is what the product routes need from the service layer.
type ProductService interface {
	List(ctx context.Context) ([]model.Product, error)
	GetByID(ctx context.Context, id int64) (model.Product, error)
	Create(ctx context.Context, p model.NewProduct) (model.Product, error)
}

type ProductHandler struct {
	service ProductService
}

func NewProductHandler(service ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// createProductRequest uses pointers so a missing field can be told apart from a zero value.
type createProductRequest struct {
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock *int             `json:"stock"`
}

func (req createProductRequest) toNewProduct() (model.NewProduct, error) {
	var missing []string
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		missing = append(missing, "name")
	}
	if req.Price == nil {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return model.NewProduct{}, fmt.Errorf("%w: required field(s) missing or empty: %s", apperr.ErrValidation, strings.Join(missing, ", "))
	}
	price, err := normalizePrice(*req.Price)
	if err != nil {
		return model.NewProduct{}, err
	}

	p := model.NewProduct{Name: *req.Name, Price: price}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	return p, nil
}

const (
	// a stored price has at most 8 integer and 2 fractional digits
	priceMaxExponent = 8
	// trailing zeros such as 9.990000 are tolerated up to this scale
	priceMaxScale = 20
	priceMaxBits  = 100
)

var priceLimit = decimal.New(1, priceMaxExponent)

// normalizePrice rejects prices a NUMERIC(10,2) column cannot hold. Exponent and coefficient
// size are bounded before any arithmetic, since rounding or comparing a decimal like 1e10000000
// materializes every digit.
func normalizePrice(price decimal.Decimal) (decimal.Decimal, error) {
	if price.IsZero() {
		return decimal.Zero, nil
	}
	exp := price.Exponent()
	if exp > priceMaxExponent || exp < -priceMaxScale || price.Coefficient().BitLen() > priceMaxBits {
		return decimal.Decimal{}, fmt.Errorf("%w: price is outside the storable range", apperr.ErrValidation)
	}
	if !price.Equal(price.Round(2)) {
		return decimal.Decimal{}, fmt.Errorf("%w: price %s has more than 2 decimal places", apperr.ErrValidation, price.String())
	}
	if price.Abs().Cmp(priceLimit) >= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: price %s is outside the storable range", apperr.ErrValidation, price.String())
	}
	return price, nil
}

func decodeCreateRequest(w http.ResponseWriter, r *http.Request) (model.NewProduct, error) {
	var req createProductRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return model.NewProduct{}, fmt.Errorf("%w: invalid request payload: %v", apperr.ErrValidation, err)
	}
	return req.toNewProduct()
}

func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: product id %q is not an integer", apperr.ErrValidation, raw)
	}
	return id, nil
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	products, err := h.service.List(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	logger.Info(ctx, "Listed products", slog.Int("count", len(products)))
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid_id", Detail: err.Error()})
		return
	}

	product, err := h.service.GetByID(ctx, id)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	input, err := decodeCreateRequest(w, r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	created, err := h.service.Create(ctx, input)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	logger.Info(ctx, "Created product", slog.Int64("id", created.ID))
	writeJSON(w, http.StatusCreated, created)
}
