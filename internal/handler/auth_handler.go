package handler

import (
	"net/http"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/service"
	"collabnotes-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-hclog"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
	logger      hclog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger hclog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	if err := h.authService.Register(r.Context(), &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Created(w, map[string]string{
		"message": "User registered successfully. Please login.",
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	loginResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, loginResp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshTokenRequest
	if !decode(w, r, h.validator, &req) {
		return
	}

	tokenResp, err := h.authService.RefreshToken(r.Context(), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, tokenResp)
}
