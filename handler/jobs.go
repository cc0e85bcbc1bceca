package handler

import (
	"net/http"
	"strconv"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/go-chi/chi/v5"
)

type JobsHandler struct {
	listing *crawljob.Listing
	router  *chi.Mux
}

func NewJobsHandler(listing *crawljob.Listing) *JobsHandler {
	h := &JobsHandler{
		listing: listing,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleView)
	r.Post("/search", h.handleSearch)
	r.Post("/reset", h.handleReset)
	r.Put("/page", h.handlePage)
	r.Put("/page-size", h.handlePageSize)
	r.Post("/{id}/retry", h.handleRetry)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Delete("/poll", h.handleStopPolling)

	h.router = r
	return h
}

func (h *JobsHandler) Router() *chi.Mux {
	return h.router
}

// handleView godoc
// @Summary      Job history
// @Description  Returns the current page. With refresh=true the page is fetched again first.
// @Tags         jobs
// @Produce      json
// @Param        refresh  query     bool  false  "Reload from the crawler API"
// @Success      200      {object}  models.BaseResponse{data=crawljob.ListingView}
// @Failure      502      {object}  models.ErrorResponse
// @Router       /v1/jobs [get]
func (h *JobsHandler) handleView(w http.ResponseWriter, r *http.Request) {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := h.listing.Open(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, h.listing.View())
}

// handleSearch godoc
// @Summary      Filter the job history
// @Tags         jobs
// @Accept       json
// @Produce      json
// @Param        filter  body      models.JobFilter  true  "Filters"
// @Success      200     {object}  models.BaseResponse{data=crawljob.ListingView}
// @Failure      400     {object}  models.ErrorResponse
// @Router       /v1/jobs/search [post]
func (h *JobsHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var filter models.JobFilter
	if !decodeBody(w, r, &filter) {
		return
	}
	h.respond(w, h.listing.Search(r.Context(), filter))
}

func (h *JobsHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.listing.ResetFilters(r.Context()))
}

func (h *JobsHandler) handlePage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.listing.SetPage(r.Context(), req.Value))
}

func (h *JobsHandler) handlePageSize(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.listing.SetPageSize(r.Context(), req.Value))
}

// handleRetry godoc
// @Summary      Retry a failed or partial job
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  models.BaseResponse{data=crawljob.ListingView}
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /v1/jobs/{id}/retry [post]
func (h *JobsHandler) handleRetry(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.listing.Retry(r.Context(), chi.URLParam(r, "id")))
}

// handleCancel godoc
// @Summary      Cancel a pending or running job
// @Tags         jobs
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  models.BaseResponse{data=crawljob.ListingView}
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /v1/jobs/{id}/cancel [post]
func (h *JobsHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.listing.Cancel(r.Context(), chi.URLParam(r, "id")))
}

func (h *JobsHandler) handleStopPolling(w http.ResponseWriter, r *http.Request) {
	h.listing.StopPolling()
	utils.WriteJSON(w, http.StatusOK, h.listing.View())
}

// respond writes the listing after an action.
func (h *JobsHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.listing.View())
}
