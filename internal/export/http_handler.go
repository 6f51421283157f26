package export

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	sceneID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("sceneId")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid sceneId: %v", err), http.StatusBadRequest)
		return
	}

	workbook, err := h.service.BuildWorkbook(r.Context(), sceneID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer workbook.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scene-"+sceneID.String()+".xlsx"))
	if err := workbook.Write(w); err != nil {
		// Headers are already gone; nothing left to report to the peer.
		return
	}
}
