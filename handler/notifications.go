package handler

import (
	"context"
	"net/http"

	"github.com/LexiconIndonesia/crawler-admin-service/common/db"
	"github.com/LexiconIndonesia/crawler-admin-service/common/notify"
	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 200
)

// RecentNotifications is the in-memory ring of the hub.
type RecentNotifications interface {
	Recent(limit int) []notify.Notification
}

// NotificationHistory is the persisted notification table.
type NotificationHistory interface {
	ListRecent(ctx context.Context, limit int) ([]db.NotificationRecord, error)
}

type NotificationHandler struct {
	recent  RecentNotifications
	history NotificationHistory
	router  *chi.Mux
}

// NewNotificationHandler serves the hub ring. history may be nil when
// PostgreSQL is disabled.
func NewNotificationHandler(recent RecentNotifications, history NotificationHistory) *NotificationHandler {
	h := &NotificationHandler{
		recent:  recent,
		history: history,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleList)

	h.router = r
	return h
}

func (h *NotificationHandler) Router() *chi.Mux {
	return h.router
}

// handleList godoc
// @Summary      Recent notifications
// @Tags         notifications
// @Produce      json
// @Param        limit   query     int     false  "Maximum number returned"
// @Param        source  query     string  false  "db to read the persisted history"
// @Success      200     {object}  models.BaseResponse{data=[]notify.Notification}
// @Failure      503     {object}  models.ErrorResponse
// @Router       /v1/notifications [get]
func (h *NotificationHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := utils.QueryInt(r, "limit", defaultNotificationLimit)
	limit = min(max(limit, 1), maxNotificationLimit)

	if r.URL.Query().Get("source") != "db" {
		utils.WriteJSON(w, http.StatusOK, h.recent.Recent(limit))
		return
	}

	if h.history == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "notification history is disabled")
		return
	}

	records, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read notification history")
		utils.WriteError(w, http.StatusInternalServerError, "failed to read notification history")
		return
	}
	utils.WriteJSON(w, http.StatusOK, lo.Map(records, func(rec db.NotificationRecord, _ int) notify.Notification {
		return notify.FromRecord(rec)
	}))
}
