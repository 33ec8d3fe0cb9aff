package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/scheduling"
	"telepharmacy-server/internal/services"
	"telepharmacy-server/internal/utils"
)

// AppointmentService is the application layer behind AppointmentHandler.
type AppointmentService interface {
	Book(ctx context.Context, session middleware.Session, req services.BookingRequest) (*services.View, error)
	List(ctx context.Context, session middleware.Session) ([]services.View, error)
	Get(ctx context.Context, session middleware.Session, id string) (*services.View, error)
	Transition(ctx context.Context, session middleware.Session, id string, action scheduling.Action, in services.TransitionInput) (*services.View, error)
	Join(ctx context.Context, session middleware.Session, id string) (*services.JoinResult, error)
}

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Service AppointmentService
	Log     *zap.Logger
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service AppointmentService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{Service: service, Log: log}
}

// CreateAppointmentRequest represents the request body for booking a slot.
type CreateAppointmentRequest struct {
	PharmacistID string `json:"pharmacistId" binding:"required"`
	Date         string `json:"date" binding:"required,date"`
	Time         string `json:"time" binding:"required,clock"`
	Reason       string `json:"reason" binding:"max=255"`
	Notes        string `json:"notes"`
}

// CreateAppointment books a slot for the calling patient.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	view, err := h.Service.Book(c.Request.Context(), session, services.BookingRequest{
		PharmacistID: req.PharmacistID,
		Date:         req.Date,
		Time:         req.Time,
		Reason:       req.Reason,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	utils.Created(c, "Appointment created successfully", view)
}

// GetAppointmentsForUser returns the caller's appointments, newest first.
func (h *AppointmentHandler) GetAppointmentsForUser(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	views, err := h.Service.List(c.Request.Context(), session)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	utils.Success(c, "Appointments fetched successfully", views)
}

// GetAppointmentByID returns one appointment the caller participates in.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	view, err := h.Service.Get(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	utils.Success(c, "Appointment fetched successfully", view)
}

// TransitionRequest is the optional body of a status change.
type TransitionRequest struct {
	ExpectedVersion *int64  `json:"expectedVersion" binding:"omitempty,gte=1"`
	Notes           *string `json:"notes"`
	Prescription    *string `json:"prescription"`
}

// Transition returns a handler applying action to the appointment in the path.
func (h *AppointmentHandler) Transition(action scheduling.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := requireSession(c)
		if !ok {
			return
		}

		var req TransitionRequest
		if !utils.BindOptionalJSON(c, &req) {
			return
		}

		view, err := h.Service.Transition(c.Request.Context(), session, c.Param("id"), action, services.TransitionInput{
			ExpectedVersion: req.ExpectedVersion,
			Notes:           req.Notes,
			Prescription:    req.Prescription,
		})
		if err != nil {
			respondError(c, h.Log, err)
			return
		}

		utils.Success(c, "Appointment "+string(view.Status), view)
	}
}

// JoinCall returns a video token for the appointment room while the call is open.
func (h *AppointmentHandler) JoinCall(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	result, err := h.Service.Join(c.Request.Context(), session, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	utils.Success(c, "Video token issued", result)
}
