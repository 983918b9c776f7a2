// Package handler exposes backup and restore over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"geoset/pkg/platform/httputil"
	"geoset/pkg/requestcontext"
)

// Service defines the backup operations the handler exposes.
type Service interface {
	Backup(ctx context.Context, w io.Writer) error
	Restore(ctx context.Context, r io.Reader, overwrite bool) error
}

// Handler serves the backup endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a backup handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts backup endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/backup", h.handleBackup)
	r.Post("/restore", h.handleRestore)
}

func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="geoset-backup.json"`)
	if err := h.service.Backup(ctx, w); err != nil {
		// Headers may already be out; log and give up on this response.
		h.logger.ErrorContext(ctx, "backup failed",
			"request_id", requestcontext.RequestID(ctx), "error", err)
	}
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overwrite := r.URL.Query().Get("overwrite") == "true"
	if err := h.service.Restore(ctx, r.Body, overwrite); err != nil {
		h.logger.ErrorContext(ctx, "restore failed",
			"request_id", requestcontext.RequestID(ctx), "overwrite", overwrite, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"restored": true, "overwrite": overwrite})
}
