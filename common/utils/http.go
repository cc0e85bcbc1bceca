package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; proxy imports are the largest.
const maxBodyBytes = 1 << 20

var ErrEmptyBody = errors.New("request body is empty")

// WriteJSON writes a JSON response with the given status code and data
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	response := models.BaseResponse{
		Data: data,
	}

	writeBody(w, statusCode, response)
}

// WriteMessage writes a JSON response with the given status code and message
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, message)
}

// WriteError writes a JSON response with the given status code and error message
func WriteError(w http.ResponseWriter, statusCode int, errorMessage string) {
	WriteFieldErrors(w, statusCode, errorMessage, nil)
}

// WriteFieldErrors is WriteError with per-field validation messages.
func WriteFieldErrors(w http.ResponseWriter, statusCode int, errorMessage string, fields map[string][]string) {
	response := models.ErrorResponse{
		Error:  http.StatusText(statusCode),
		Msg:    errorMessage,
		Fields: fields,
	}

	writeBody(w, statusCode, response)
}

// WritePagination writes a JSON response with pagination metadata
func WritePagination(w http.ResponseWriter, statusCode int, data interface{}, currentPage, perPage int, total int64) {
	lastPage := int64(1)
	if perPage > 0 && total > 0 {
		lastPage = int64(math.Ceil(float64(total) / float64(perPage)))
	}

	meta := models.MetaResponse{
		CurrentPage: int64(currentPage),
		LastPage:    lastPage,
		PerPage:     int64(perPage),
		Total:       total,
	}

	response := models.BasePaginationResponse{
		Data: data,
		Meta: meta,
	}

	writeBody(w, statusCode, response)
}

func writeBody(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// DecodeJSON reads the request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// URLParamInt64 parses the chi URL parameter key.
func URLParamInt64(r *http.Request, key string) (int64, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return id, nil
}

// QueryInt parses the query parameter key, returning def when it is absent
// or not a number.
func QueryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
