package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/medflow/stockledger/internal/inventory/domain"
	"github.com/medflow/stockledger/pkg/errors"
)

// int64Param reads a numeric path parameter
func int64Param(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.InvalidField(name, "must be a positive integer")
	}
	return id, nil
}

// optionalDate parses a YYYY-MM-DD body field; empty means unset.
func optionalDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, errors.InvalidField(field, "must be a date in YYYY-MM-DD format")
	}
	return d, nil
}
