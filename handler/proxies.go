package handler

import (
	"errors"
	"net/http"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/LexiconIndonesia/crawler-admin-service/proxypool"
	"github.com/go-chi/chi/v5"
)

// BulkTestRequest selects between testing the whole pool and the ticked
// proxies. An empty body tests the whole pool.
type BulkTestRequest struct {
	Selected bool `json:"selected"`
}

// SelectRequest ticks or unticks one proxy.
type SelectRequest struct {
	Selected bool `json:"selected"`
}

// CountResponse is returned by import and dead removal.
type CountResponse struct {
	Count int            `json:"count"`
	View  proxypool.View `json:"view"`
}

type ProxyHandler struct {
	manager *proxypool.Manager
	router  *chi.Mux
}

func NewProxyHandler(manager *proxypool.Manager) *ProxyHandler {
	h := &ProxyHandler{
		manager: manager,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleView)
	r.Post("/search", h.handleSearch)
	r.Post("/reset", h.handleReset)
	r.Put("/page", h.handlePage)
	r.Put("/page-size", h.handlePageSize)
	r.Post("/", h.handleCreate)
	r.Post("/import", h.handleImport)
	r.Post("/test", h.handleTestMany)
	r.Delete("/dead", h.handleRemoveDead)
	r.Post("/{id}/test", h.handleTest)
	r.Put("/{id}/selected", h.handleSelect)
	r.Delete("/{id}", h.handleDelete)

	h.router = r
	return h
}

func (h *ProxyHandler) Router() *chi.Mux {
	return h.router
}

// handleView godoc
// @Summary      Proxy pool
// @Tags         proxies
// @Produce      json
// @Param        refresh  query     bool  false  "Reload from the crawler API"
// @Success      200      {object}  models.BaseResponse{data=proxypool.View}
// @Failure      502      {object}  models.ErrorResponse
// @Router       /v1/proxies [get]
func (h *ProxyHandler) handleView(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := h.manager.Load(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, h.manager.View())
}

func (h *ProxyHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var filter models.ProxyFilter
	if !decodeBody(w, r, &filter) {
		return
	}
	h.respond(w, h.manager.Search(r.Context(), filter))
}

func (h *ProxyHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.manager.ResetFilters(r.Context()))
}

func (h *ProxyHandler) handlePage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.manager.SetPage(r.Context(), req.Value))
}

func (h *ProxyHandler) handlePageSize(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.manager.SetPageSize(r.Context(), req.Value))
}

// handleCreate godoc
// @Summary      Add a proxy
// @Tags         proxies
// @Accept       json
// @Produce      json
// @Param        proxy  body      models.ProxyInput  true  "Proxy"
// @Success      201    {object}  models.BaseResponse{data=models.Proxy}
// @Failure      409    {object}  models.ErrorResponse
// @Failure      422    {object}  models.ErrorResponse
// @Router       /v1/proxies [post]
func (h *ProxyHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input models.ProxyInput
	if !decodeBody(w, r, &input) {
		return
	}

	created, err := h.manager.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, created)
}

// handleImport godoc
// @Summary      Import proxies, one per line
// @Tags         proxies
// @Accept       json
// @Produce      json
// @Param        import  body      models.ProxyImport  true  "Import"
// @Success      200     {object}  models.BaseResponse{data=CountResponse}
// @Failure      409     {object}  models.ErrorResponse
// @Failure      422     {object}  models.ErrorResponse
// @Router       /v1/proxies/import [post]
func (h *ProxyHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	var input models.ProxyImport
	if !decodeBody(w, r, &input) {
		return
	}

	n, err := h.manager.Import(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, CountResponse{Count: n, View: h.manager.View()})
}

// handleTestMany godoc
// @Summary      Test the whole pool or the ticked proxies
// @Tags         proxies
// @Accept       json
// @Produce      json
// @Param        request  body      BulkTestRequest  false  "Scope"
// @Success      200      {object}  models.BaseResponse{data=proxypool.TestSummary}
// @Failure      400      {object}  models.ErrorResponse
// @Failure      409      {object}  models.ErrorResponse
// @Router       /v1/proxies/test [post]
func (h *ProxyHandler) handleTestMany(w http.ResponseWriter, r *http.Request) {
	var req BulkTestRequest
	if err := utils.DecodeJSON(r, &req); err != nil && !errors.Is(err, utils.ErrEmptyBody) {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var (
		summary proxypool.TestSummary
		err     error
	)
	if req.Selected {
		summary, err = h.manager.TestSelected(r.Context())
	} else {
		summary, err = h.manager.TestAll(r.Context())
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, summary)
}

// handleTest godoc
// @Summary      Test one proxy
// @Tags         proxies
// @Produce      json
// @Param        id   path      int  true  "Proxy ID"
// @Success      200  {object}  models.BaseResponse{data=models.ProxyTestResult}
// @Failure      409  {object}  models.ErrorResponse
// @Router       /v1/proxies/{id}/test [post]
func (h *ProxyHandler) handleTest(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt64(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.manager.Test(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func (h *ProxyHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt64(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.respond(w, h.manager.SetSelected(id, req.Selected))
}

// handleRemoveDead godoc
// @Summary      Delete every dead proxy
// @Tags         proxies
// @Produce      json
// @Success      200  {object}  models.BaseResponse{data=CountResponse}
// @Failure      409  {object}  models.ErrorResponse
// @Router       /v1/proxies/dead [delete]
func (h *ProxyHandler) handleRemoveDead(w http.ResponseWriter, r *http.Request) {
	n, err := h.manager.RemoveDead(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, CountResponse{Count: n, View: h.manager.View()})
}

// handleDelete godoc
// @Summary      Delete a proxy
// @Tags         proxies
// @Produce      json
// @Param        id   path      int  true  "Proxy ID"
// @Success      200  {object}  models.BaseResponse{data=proxypool.View}
// @Router       /v1/proxies/{id} [delete]
func (h *ProxyHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamInt64(r, "id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, h.manager.Delete(r.Context(), id))
}

func (h *ProxyHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.manager.View())
}
