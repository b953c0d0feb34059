package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"product-service/internal/apperr"
	"product-service/internal/logger"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status. Missing products are an expected outcome and are
// logged at info; store failures are logged as errors.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Error: apperr.Code(err), Detail: err.Error()}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error(ctx, "Product request failed", slog.String("error", err.Error()), slog.Int("status", status))
		if !errors.Is(err, apperr.ErrPoolClosed) && !errors.Is(err, apperr.ErrPoolExhausted) {
			// driver messages stay in the log
			body.Detail = ""
		}
	case errors.Is(err, apperr.ErrNotFound):
		logger.Info(ctx, "Product not found", slog.String("detail", err.Error()))
	default:
		logger.Warn(ctx, "Product request rejected", slog.String("error", err.Error()), slog.Int("status", status))
	}

	writeJSON(w, status, body)
}
