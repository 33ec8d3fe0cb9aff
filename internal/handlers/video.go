package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/services"
	"telepharmacy-server/internal/video"
)

// CallJoiner admits a participant to an appointment's video room.
type CallJoiner interface {
	Join(ctx context.Context, session middleware.Session, id string) (*services.JoinResult, error)
}

// VideoHandler issues room tokens on request. The room is an appointment room,
// so the same participant and join window checks as JoinCall apply.
type VideoHandler struct {
	Calls CallJoiner
	Log   *zap.Logger
}

// NewVideoHandler creates a new VideoHandler.
func NewVideoHandler(calls CallJoiner, log *zap.Logger) *VideoHandler {
	return &VideoHandler{Calls: calls, Log: log}
}

// VideoTokenRequest names the participant and the room. The token is always
// issued under the caller's account name; identity only has to be present.
type VideoTokenRequest struct {
	Identity string `json:"identity"`
	RoomName string `json:"roomName"`
}

// VideoTokenResponse carries the signed token.
type VideoTokenResponse struct {
	Token    string `json:"token"`
	RoomName string `json:"roomName"`
}

type videoError struct {
	Error string `json:"error"`
}

// IssueToken mints a token for the caller in roomName. This endpoint answers
// with a bare {token, roomName} or {error} body instead of the envelope.
func (h *VideoHandler) IssueToken(c *gin.Context) {
	session, ok := middleware.GetSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, videoError{Error: "User not authenticated"})
		return
	}

	var req VideoTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, videoError{Error: "Invalid request payload: " + err.Error()})
		return
	}
	if req.Identity == "" || req.RoomName == "" {
		c.JSON(http.StatusBadRequest, videoError{Error: video.ErrMissingField.Error()})
		return
	}

	result, err := h.Calls.Join(c.Request.Context(), session, req.RoomName)
	if err != nil {
		code, message := errorStatus(c, h.Log, err)
		c.JSON(code, videoError{Error: message})
		return
	}

	h.Log.Info("video token issued",
		zap.String("user_id", session.UserID),
		zap.String("identity", result.Identity),
		zap.String("room", result.RoomName),
	)
	c.JSON(http.StatusOK, VideoTokenResponse{Token: result.Token, RoomName: result.RoomName})
}
