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

type NoteHandler struct {
	service  *service.NoteService
	validate *validator.Validate
	logger   hclog.Logger
}

func NewNoteHandler(service *service.NoteService, logger hclog.Logger) *NoteHandler {
	return &NoteHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNoteRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.Create(r.Context(), middleware.GetUsername(r), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Created(w, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePermissionsRequest
	if !decode(w, r, h.validate, &req) {
		return
	}

	note, err := h.service.UpdatePermissions(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.NoContent(w)
}
