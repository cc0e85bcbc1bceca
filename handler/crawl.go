package handler

import (
	"net/http"
	"strconv"

	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/go-chi/chi/v5"
)

type CrawlHandler struct {
	controller *crawljob.Controller
	router     *chi.Mux
}

func NewCrawlHandler(controller *crawljob.Controller) *CrawlHandler {
	h := &CrawlHandler{
		controller: controller,
	}

	r := chi.NewRouter()
	r.Get("/drivers", h.handleDrivers)
	r.Post("/", h.handleSubmit)
	r.Get("/active", h.handleActive)
	r.Delete("/active", h.handleStopWatching)

	h.router = r
	return h
}

func (h *CrawlHandler) Router() *chi.Mux {
	return h.router
}

// handleDrivers godoc
// @Summary      List crawler drivers
// @Tags         crawl
// @Description  With refresh=true the cached list is dropped and loaded again.
// @Produce      json
// @Param        refresh  query     bool  false  "Bypass the driver cache"
// @Success      200  {object}  models.BaseResponse{data=[]string}
// @Failure      502  {object}  models.ErrorResponse
// @Router       /v1/crawl/drivers [get]
func (h *CrawlHandler) handleDrivers(w http.ResponseWriter, r *http.Request) {
	load := h.controller.Drivers
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		load = h.controller.RefreshDrivers
	}
	drivers, err := load(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, drivers)
}

// handleSubmit godoc
// @Summary      Start a crawl job and watch it
// @Tags         crawl
// @Accept       json
// @Produce      json
// @Param        request  body      crawljob.SubmitRequest  true  "Crawl form"
// @Success      201      {object}  models.BaseResponse{data=models.CrawlJob}
// @Failure      409      {object}  models.ErrorResponse
// @Failure      422      {object}  models.ErrorResponse
// @Failure      502      {object}  models.ErrorResponse
// @Router       /v1/crawl [post]
func (h *CrawlHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req crawljob.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	job, err := h.controller.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, job)
}

// handleActive godoc
// @Summary      Watched job state
// @Tags         crawl
// @Produce      json
// @Success      200  {object}  models.BaseResponse{data=crawljob.ControllerState}
// @Router       /v1/crawl/active [get]
func (h *CrawlHandler) handleActive(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.controller.State())
}

// handleStopWatching godoc
// @Summary      Stop watching the current job
// @Tags         crawl
// @Success      200  {object}  models.BaseResponse{data=string}
// @Router       /v1/crawl/active [delete]
func (h *CrawlHandler) handleStopWatching(w http.ResponseWriter, r *http.Request) {
	h.controller.StopWatching()
	utils.WriteMessage(w, http.StatusOK, "Stopped watching")
}
