package handler

import (
	"errors"
	"net/http"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/crawlerapi"
	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/LexiconIndonesia/crawler-admin-service/common/validation"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/LexiconIndonesia/crawler-admin-service/proxypool"
	"github.com/rs/zerolog/log"
)

// writeServiceError maps a component error to a response. Upstream failures
// are reported as 502 without echoing the backend text.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		utils.WriteFieldErrors(w, http.StatusUnprocessableEntity, "validation failed", verr.Fields)
		return
	}

	switch {
	case errors.Is(err, common.ErrInFlight),
		errors.Is(err, common.ErrBusy),
		errors.Is(err, crawljob.ErrSubmitInProgress):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, crawljob.ErrNotRetryable),
		errors.Is(err, crawljob.ErrNotCancellable):
		utils.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, crawljob.ErrJobNotVisible),
		errors.Is(err, common.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, crawljob.ErrInvalidFilter),
		errors.Is(err, proxypool.ErrInvalidFilter),
		errors.Is(err, proxypool.ErrNothingSelected),
		errors.Is(err, crawlerapi.ErrInvalidJobID):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrClosed):
		utils.WriteError(w, http.StatusServiceUnavailable, "service is shutting down")
	case errors.Is(err, crawlerapi.ErrUnauthorized):
		utils.WriteError(w, http.StatusBadGateway, "crawler API rejected the console credentials")
	default:
		switch crawlerapi.StatusCode(err) {
		case http.StatusUnprocessableEntity:
			utils.WriteFieldErrors(w, http.StatusUnprocessableEntity, "crawler API rejected the request", fieldErrors(err))
		case http.StatusNotFound:
			utils.WriteError(w, http.StatusNotFound, "not found on the crawler API")
		default:
			log.Error().Err(err).Msg("Crawler API request failed")
			utils.WriteError(w, http.StatusBadGateway, "crawler API request failed")
		}
	}
}

func fieldErrors(err error) map[string][]string {
	var apiErr *crawlerapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Fields
	}
	return nil
}

// decodeBody reads the JSON body and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// PageRequest is the body of the PUT /page and PUT /page-size routes.
type PageRequest struct {
	Value int `json:"value"`
}
