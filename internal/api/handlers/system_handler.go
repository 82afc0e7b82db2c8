package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/privadoc/privadoc/internal/models"
	"github.com/privadoc/privadoc/internal/services"
)

type SystemHandler struct {
	svc *services.SystemService
	log *log.Logger
}

func NewSystemHandler(svc *services.SystemService, logger *log.Logger) *SystemHandler {
	return &SystemHandler{svc: svc, log: logger.WithPrefix("api")}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

func (h *SystemHandler) Templates(w http.ResponseWriter, r *http.Request) {
	infos := h.svc.Templates()
	if infos == nil {
		infos = []models.TemplateInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": infos})
}

func (h *SystemHandler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.ModelInfo(r.Context())
	if err != nil {
		h.log.Warn("model info probe failed", "err", err)
		writeError(w, statusFor(err), "model information unavailable")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.log.Error("stats query failed", "err", err)
		writeError(w, statusFor(err), "could not compute statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
