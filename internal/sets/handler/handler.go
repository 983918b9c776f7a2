// Package handler wires the set store endpoints to the set service. It is a
// thin transport layer: decode, delegate, encode.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"geoset/internal/regions"
	"geoset/internal/sets"
	setservice "geoset/internal/sets/service"
	dErrors "geoset/pkg/domain-errors"
	"geoset/pkg/platform/httputil"
	"geoset/pkg/requestcontext"
)

// Service defines the set operations the handler exposes.
type Service interface {
	CreateSet(ctx context.Context, name, description string, identifiers []string) (int, error)
	CreateVersion(ctx context.Context, req setservice.CreateVersionRequest) (int, error)
	GetSetVersion(ctx context.Context, name string, version int) ([]string, error)
	AddToSet(ctx context.Context, name string, identifiers []string, changeDescription string) (int, error)
	RemoveFromSet(ctx context.Context, name string, identifiers []string, changeDescription string) (int, error)
	ListSets(ctx context.Context) ([]sets.SetSummary, error)
	ListVersions(ctx context.Context, name string) ([]sets.VersionInfo, error)
	Rollback(ctx context.Context, name string, targetVersion int) (int, error)
	CompareVersions(ctx context.Context, name string, v1, v2 int) (sets.VersionDiff, error)
	DeleteSet(ctx context.Context, name string) error
	ListAllIdentifiers(ctx context.Context) ([]sets.IdentifierUsage, error)
	WhichSets(ctx context.Context, geoid string) ([]sets.SetMembership, error)
}

// Handler serves the set endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a set handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts set endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/sets", h.handleListSets)
	r.Post("/sets", h.handleCreateSet)
	r.Get("/sets/{name}", h.handleGetSet)
	r.Delete("/sets/{name}", h.handleDeleteSet)
	r.Get("/sets/{name}/versions", h.handleListVersions)
	r.Post("/sets/{name}/versions", h.handleCreateVersion)
	r.Post("/sets/{name}/add", h.handleAdd)
	r.Post("/sets/{name}/remove", h.handleRemove)
	r.Post("/sets/{name}/rollback", h.handleRollback)
	r.Get("/sets/{name}/compare", h.handleCompare)
	r.Get("/identifiers", h.handleListIdentifiers)
	r.Get("/identifiers/{geoid}/sets", h.handleWhichSets)
	r.Get("/presets", h.handleListPresets)
	r.Post("/presets/{key}", h.handleSeedPreset)
}

type createSetRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Identifiers []string `json:"identifiers"`
}

type createVersionRequest struct {
	Identifiers       []string `json:"identifiers"`
	ChangeDescription string   `json:"change_description"`
	BaseVersion       int      `json:"base_version"`
	Description       string   `json:"description"`
}

type mutateRequest struct {
	Identifiers       []string `json:"identifiers"`
	ChangeDescription string   `json:"change_description"`
}

type rollbackRequest struct {
	TargetVersion int `json:"target_version"`
}

type versionResponse struct {
	SetName string `json:"set_name"`
	Version int    `json:"version"`
	NoOp    bool   `json:"no_op,omitempty"`
}

type membersResponse struct {
	SetName     string   `json:"set_name"`
	Version     int      `json:"version,omitempty"`
	Identifiers []string `json:"identifiers"`
	Count       int      `json:"count"`
}

func (h *Handler) handleCreateSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[createSetRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	version, err := h.service.CreateSet(ctx, req.Name, req.Description, req.Identifiers)
	if err != nil {
		h.fail(ctx, w, "create set", err, "set_name", req.Name)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, versionResponse{SetName: req.Name, Version: version})
}

func (h *Handler) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	req, ok := httputil.Decode[createVersionRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	version, err := h.service.CreateVersion(ctx, setservice.CreateVersionRequest{
		Name:              name,
		Identifiers:       req.Identifiers,
		ChangeDescription: req.ChangeDescription,
		BaseVersion:       req.BaseVersion,
		Description:       req.Description,
	})
	if err != nil {
		h.fail(ctx, w, "create version", err, "set_name", name)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, versionResponse{SetName: name, Version: version})
}

func (h *Handler) handleGetSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "version must be a non-negative integer"))
			return
		}
		version = parsed
	}
	members, err := h.service.GetSetVersion(ctx, name, version)
	if err != nil {
		h.fail(ctx, w, "get set", err, "set_name", name)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, membersResponse{
		SetName:     name,
		Version:     version,
		Identifiers: members,
		Count:       len(members),
	})
}

func (h *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "add identifiers", h.service.AddToSet)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "remove identifiers", h.service.RemoveFromSet)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, what string,
	op func(ctx context.Context, name string, identifiers []string, changeDescription string) (int, error)) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	req, ok := httputil.Decode[mutateRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	version, err := op(ctx, name, req.Identifiers, req.ChangeDescription)
	if err != nil {
		h.fail(ctx, w, what, err, "set_name", name)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, versionResponse{SetName: name, Version: version, NoOp: version == 0})
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	req, ok := httputil.Decode[rollbackRequest](w, r, h.logger, ctx)
	if !ok {
		return
	}
	version, err := h.service.Rollback(ctx, name, req.TargetVersion)
	if err != nil {
		h.fail(ctx, w, "rollback", err, "set_name", name, "target_version", req.TargetVersion)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, versionResponse{SetName: name, Version: version})
}

func (h *Handler) handleCompare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	v1, err1 := strconv.Atoi(r.URL.Query().Get("v1"))
	v2, err2 := strconv.Atoi(r.URL.Query().Get("v2"))
	if err1 != nil || err2 != nil || v1 <= 0 || v2 <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "v1 and v2 must be positive integers"))
		return
	}
	diff, err := h.service.CompareVersions(ctx, name, v1, v2)
	if err != nil {
		h.fail(ctx, w, "compare versions", err, "set_name", name)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, diff)
}

func (h *Handler) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	if err := h.service.DeleteSet(ctx, name); err != nil {
		h.fail(ctx, w, "delete set", err, "set_name", name)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListSets(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListSets(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "list sets", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleListVersions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	infos, err := h.service.ListVersions(r.Context(), name)
	if err != nil {
		h.fail(r.Context(), w, "list versions", err, "set_name", name)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, infos)
}

func (h *Handler) handleListIdentifiers(w http.ResponseWriter, r *http.Request) {
	usages, err := h.service.ListAllIdentifiers(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "list identifiers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, usages)
}

func (h *Handler) handleWhichSets(w http.ResponseWriter, r *http.Request) {
	geoid := chi.URLParam(r, "geoid")
	memberships, err := h.service.WhichSets(r.Context(), geoid)
	if err != nil {
		h.fail(r.Context(), w, "list containing sets", err, "identifier", geoid)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, memberships)
}

func (h *Handler) handleListPresets(w http.ResponseWriter, _ *http.Request) {
	type presetSummary struct {
		Key         string `json:"key"`
		Description string `json:"description"`
		Count       int    `json:"count"`
	}
	out := make([]presetSummary, 0, len(regions.Presets))
	for _, p := range regions.Presets {
		out = append(out, presetSummary{Key: p.Key, Description: p.Description, Count: len(p.GEOIDs)})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// handleSeedPreset materializes a predefined regional set as a real set. The
// preset key becomes the set name; re-seeding an existing set conflicts.
func (h *Handler) handleSeedPreset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")
	preset, ok := regions.PresetByKey(key)
	if !ok {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "no preset %q", key))
		return
	}
	version, err := h.service.CreateSet(ctx, preset.Key, preset.Description, preset.GEOIDs)
	if err != nil {
		h.fail(ctx, w, "seed preset", err, "preset", key)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, versionResponse{SetName: preset.Key, Version: version})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, what string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	h.logger.ErrorContext(ctx, what+" failed", attrs...)
	httputil.WriteError(w, err)
}
