// Package handler exposes the set algebra operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "geoset/pkg/domain-errors"
	"geoset/pkg/platform/httputil"
	"geoset/pkg/requestcontext"
)

// Service defines the algebra operations the handler exposes.
type Service interface {
	Union(ctx context.Context, inputs []string, output string) (int, error)
	Intersect(ctx context.Context, inputs []string, output string) (int, error)
	Difference(ctx context.Context, base, subtract, output string) (int, error)
	SymmetricDifference(ctx context.Context, name1, name2, output string) (int, error)
}

// Handler serves the algebra endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an algebra handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts algebra endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/algebra/union", h.handleUnion)
	r.Post("/algebra/intersect", h.handleIntersect)
	r.Post("/algebra/difference", h.handleDifference)
	r.Post("/algebra/symmetric-difference", h.handleSymmetricDifference)
}

type multiInputRequest struct {
	Inputs []string `json:"inputs"`
	Output string   `json:"output"`
}

type differenceRequest struct {
	Base     string `json:"base"`
	Subtract string `json:"subtract"`
	Output   string `json:"output"`
}

type pairRequest struct {
	Name1  string `json:"name1"`
	Name2  string `json:"name2"`
	Output string `json:"output"`
}

type resultResponse struct {
	SetName string `json:"set_name"`
	Version int    `json:"version"`
}

func (h *Handler) handleUnion(w http.ResponseWriter, r *http.Request) {
	h.multi(w, r, "union", h.service.Union)
}

func (h *Handler) handleIntersect(w http.ResponseWriter, r *http.Request) {
	h.multi(w, r, "intersect", h.service.Intersect)
}

func (h *Handler) multi(w http.ResponseWriter, r *http.Request, what string,
	op func(ctx context.Context, inputs []string, output string) (int, error)) {
	ctx := r.Context()
	req, ok := httputil.Decode[multiInputRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	version, err := op(ctx, req.Inputs, req.Output)
	if err != nil {
		h.fail(ctx, w, what, err, "output", req.Output)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resultResponse{SetName: req.Output, Version: version})
}

func (h *Handler) handleDifference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[differenceRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if req.Base == "" || req.Subtract == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "base and subtract set names are required"))
		return
	}
	version, err := h.service.Difference(ctx, req.Base, req.Subtract, req.Output)
	if err != nil {
		h.fail(ctx, w, "difference", err, "output", req.Output)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resultResponse{SetName: req.Output, Version: version})
}

func (h *Handler) handleSymmetricDifference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[pairRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	if req.Name1 == "" || req.Name2 == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "name1 and name2 are required"))
		return
	}
	version, err := h.service.SymmetricDifference(ctx, req.Name1, req.Name2, req.Output)
	if err != nil {
		h.fail(ctx, w, "symmetric difference", err, "output", req.Output)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resultResponse{SetName: req.Output, Version: version})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, what string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	h.logger.ErrorContext(ctx, what+" failed", attrs...)
	httputil.WriteError(w, err)
}
