package handler

import (
	"net/http"

	"collabnotes-server/internal/middleware"
	"collabnotes-server/internal/service"
	"collabnotes-server/pkg/response"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

type VersionHandler struct {
	versions *service.VersionService
	logger   hclog.Logger
}

func NewVersionHandler(versions *service.VersionService, logger hclog.Logger) *VersionHandler {
	return &VersionHandler{
		versions: versions,
		logger:   logger,
	}
}

func (h *VersionHandler) History(w http.ResponseWriter, r *http.Request) {
	history, err := h.versions.History(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, history)
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	n, ok := intVar(r, "version")
	if !ok {
		response.BadRequest(w, "version must be a positive integer")
		return
	}

	v, err := h.versions.Get(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r), n)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, v)
}

func (h *VersionHandler) Compare(w http.ResponseWriter, r *http.Request) {
	from, ok := intVar(r, "v1")
	if !ok {
		response.BadRequest(w, "v1 must be a positive integer")
		return
	}
	to, ok := intVar(r, "v2")
	if !ok {
		response.BadRequest(w, "v2 must be a positive integer")
		return
	}

	cmp, err := h.versions.Compare(r.Context(), mux.Vars(r)["id"], middleware.GetUsername(r), from, to)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, cmp)
}
