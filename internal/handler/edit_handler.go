package handler

import (
	"net/http"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/middleware"
	"collabnotes-server/internal/service"
	"collabnotes-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

// EditHandler exposes the lock and save lifecycle of a note.
type EditHandler struct {
	edits    *service.EditService
	validate *validator.Validate
	logger   hclog.Logger
}

func NewEditHandler(edits *service.EditService, logger hclog.Logger) *EditHandler {
	return &EditHandler{
		edits:    edits,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *EditHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	l, err := h.edits.BeginEdit(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, l)
}

func (h *EditHandler) ExtendLock(w http.ResponseWriter, r *http.Request) {
	l, err := h.edits.ExtendLock(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, l)
}

func (h *EditHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	if err := h.edits.CancelEdit(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.NoContent(w)
}

func (h *EditHandler) ForceUnlock(w http.ResponseWriter, r *http.Request) {
	if err := h.edits.ForceUnlock(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.NoContent(w)
}

func (h *EditHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.edits.LockStatusFor(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, st)
}

func (h *EditHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveNoteRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	result, err := h.edits.Save(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}

func (h *EditHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req domain.RestoreVersionRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	result, err := h.edits.Restore(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r), req.VersionNumber)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, result)
}
