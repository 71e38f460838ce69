package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/service"
)

// ReportHandler serves /api/v1/reports.
type ReportHandler struct {
	reports *service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		logger:  logger.With().Str("handler", "report").Logger(),
	}
}

// Routes mounts the report endpoints.
func (h *ReportHandler) Routes(r chi.Router) {
	r.Get("/preview", h.Preview)
	r.Post("/", h.Publish)
	r.Get("/latest", h.Latest)
}

// Preview builds a report without storing it.
func (h *ReportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Build(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// Publish stores a fresh report and returns its key.
func (h *ReportHandler) Publish(w http.ResponseWriter, r *http.Request) {
	key, err := h.reports.Publish(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]string{"key": key})
}

// Latest returns the last published report as stored.
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	data, err := h.reports.LoadLatest(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	key, _ := h.reports.Latest()
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Report-Key", key)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
