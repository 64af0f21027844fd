package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"collabnotes-server/internal/service"
	"collabnotes-server/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
)

type lockConflictBody struct {
	NoteID    string    `json:"note_id"`
	LockedBy  string    `json:"locked_by"`
	ExpiresAt time.Time `json:"expires_at"`
}

// writeError maps service errors onto status codes. Internal details are
// logged, not returned.
func writeError(w http.ResponseWriter, logger hclog.Logger, err error) {
	var conflict *service.LockConflictError
	switch {
	case errors.As(err, &conflict):
		response.ErrorWithData(w, http.StatusConflict, conflict.Error(), lockConflictBody{
			NoteID:    conflict.NoteID,
			LockedBy:  conflict.Holder,
			ExpiresAt: conflict.ExpiresAt,
		})
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrInvalid):
		response.BadRequest(w, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, err.Error())
	default:
		logger.Error("request failed", "error", err)
		response.InternalError(w, "Internal server error")
	}
}

// decode reads a JSON body into v and validates it.
func decode(w http.ResponseWriter, r *http.Request, validate *validator.Validate, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.BadRequest(w, "Invalid request body")
		return false
	}
	if err := validate.Struct(v); err != nil {
		response.BadRequest(w, err.Error())
		return false
	}
	return true
}

// intVar parses a positive integer route variable.
func intVar(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
