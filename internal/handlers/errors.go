package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/redisstore"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/scheduling"
	"telepharmacy-server/internal/services"
	"telepharmacy-server/internal/utils"
	"telepharmacy-server/internal/video"
)

// respondError translates a domain error into the response envelope.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	code, message := errorStatus(c, log, err)
	utils.Error(c, code, message)
}

// errorStatus maps err onto a status code and a client-safe message.
// Collaborator failures are logged and answered with a generic message.
func errorStatus(c *gin.Context, log *zap.Logger, err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, scheduling.ErrInvalidClock),
		errors.Is(err, scheduling.ErrInvalidDate),
		errors.Is(err, scheduling.ErrInvalidWindow),
		errors.Is(err, scheduling.ErrUnknownAction),
		errors.Is(err, models.ErrInvalidAppointment),
		errors.Is(err, video.ErrMissingField):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, scheduling.ErrNotParticipant),
		errors.Is(err, scheduling.ErrActorRole):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, scheduling.ErrIllegalTransition),
		errors.Is(err, services.ErrCallNotOpen),
		errors.Is(err, repository.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, redisstore.ErrLocked):
		return http.StatusConflict, "Appointment was modified by another request, please reload and try again"
	case errors.Is(err, video.ErrNotConfigured):
		log.Error("video credentials missing", zap.String("path", c.FullPath()))
		return http.StatusInternalServerError, "Video credentials not configured"
	default:
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		return http.StatusInternalServerError, "Internal server error"
	}
}

// requireSession returns the caller or answers 401.
func requireSession(c *gin.Context) (middleware.Session, bool) {
	session, ok := middleware.GetSession(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
	}
	return session, ok
}
