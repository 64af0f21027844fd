package handler

import (
	"net/http"

	"collabnotes-server/internal/middleware"
	"collabnotes-server/internal/service"
	"collabnotes-server/pkg/response"

	"github.com/hashicorp/go-hclog"
)

type UserHandler struct {
	userService *service.UserService
	logger      hclog.Logger
}

func NewUserHandler(userService *service.UserService, logger hclog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r)
	if username == "" {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	user, err := h.userService.Profile(r.Context(), username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}
