package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/scheduling"
	"telepharmacy-server/internal/utils"
)

// PharmacistHandler serves the pharmacist directory and availability settings.
type PharmacistHandler struct {
	Users    repository.UserRepository
	Location *time.Location
	Log      *zap.Logger
	// Now is the clock GetSlots filters against.
	Now func() time.Time
}

// NewPharmacistHandler creates a new PharmacistHandler.
func NewPharmacistHandler(users repository.UserRepository, loc *time.Location, log *zap.Logger) *PharmacistHandler {
	return &PharmacistHandler{Users: users, Location: loc, Log: log, Now: time.Now}
}

// ListPharmacists returns all pharmacists. ?available=true keeps only those
// accepting appointments.
func (h *PharmacistHandler) ListPharmacists(c *gin.Context) {
	pharmacists, err := h.Users.ListPharmacists(c.Request.Context())
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	onlyAvailable := c.Query("available") == "true"
	result := make([]models.UserSanitized, 0, len(pharmacists))
	for i := range pharmacists {
		if onlyAvailable && !pharmacists[i].Available {
			continue
		}
		result = append(result, pharmacists[i].Sanitize())
	}

	utils.Success(c, "Pharmacists fetched successfully", result)
}

func (h *PharmacistHandler) findPharmacist(c *gin.Context, id string) (*models.User, bool) {
	user, err := h.Users.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "Pharmacist not found")
		} else {
			respondError(c, h.Log, err)
		}
		return nil, false
	}
	if user.Role != models.RolePharmacist {
		utils.NotFound(c, "Pharmacist not found")
		return nil, false
	}
	return user, true
}

// GetPharmacist returns one pharmacist's public profile.
func (h *PharmacistHandler) GetPharmacist(c *gin.Context) {
	user, ok := h.findPharmacist(c, c.Param("id"))
	if !ok {
		return
	}
	utils.Success(c, "Pharmacist fetched successfully", user.Sanitize())
}

// SlotsResponse lists the bookable start times of a pharmacist.
type SlotsResponse struct {
	PharmacistID   string            `json:"pharmacistId"`
	Date           string            `json:"date,omitempty"`
	Available      bool              `json:"available"`
	AvailableHours scheduling.Window `json:"availableHours"`
	Slots          []string          `json:"slots"`
}

// GetSlots returns the slot grid of a pharmacist. With ?date=YYYY-MM-DD for
// today, slots that already started are left out.
func (h *PharmacistHandler) GetSlots(c *gin.Context) {
	user, ok := h.findPharmacist(c, c.Param("id"))
	if !ok {
		return
	}

	slots, err := scheduling.SlotsFor(user.AvailableHours)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}

	resp := SlotsResponse{
		PharmacistID:   user.ID,
		Available:      user.Available,
		AvailableHours: user.Hours(),
		Slots:          slots,
	}

	if raw := c.Query("date"); raw != "" {
		date, err := scheduling.ParseDate(raw, h.Location)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		resp.Date = raw
		resp.Slots = upcoming(date, slots, h.Now())
	}

	utils.Success(c, "Slots fetched successfully", resp)
}

// upcoming drops slots on date that start before now.
func upcoming(date time.Time, slots []string, now time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		start, err := scheduling.AppointmentInstant(date, slot)
		if err != nil || start.Before(now) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// AvailabilityResponse is a pharmacist's availability setting.
type AvailabilityResponse struct {
	Available      bool              `json:"available"`
	AvailableHours scheduling.Window `json:"availableHours"`
	Slots          []string          `json:"slots"`
}

func availabilityOf(user *models.User) (AvailabilityResponse, error) {
	slots, err := scheduling.SlotsFor(user.AvailableHours)
	if err != nil {
		return AvailabilityResponse{}, err
	}
	return AvailabilityResponse{Available: user.Available, AvailableHours: user.Hours(), Slots: slots}, nil
}

// GetAvailability returns the calling pharmacist's hours.
func (h *PharmacistHandler) GetAvailability(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}
	user, ok := h.findPharmacist(c, session.UserID)
	if !ok {
		return
	}

	resp, err := availabilityOf(user)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Availability fetched successfully", resp)
}

// UpdateAvailabilityRequest sets the daily window and the accepting flag.
type UpdateAvailabilityRequest struct {
	StartTime string `json:"startTime" binding:"required,clock"`
	EndTime   string `json:"endTime" binding:"required,clock"`
	Available *bool  `json:"available"`
}

// UpdateAvailability saves the calling pharmacist's hours. The start must be
// strictly before the end.
func (h *PharmacistHandler) UpdateAvailability(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req UpdateAvailabilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	window := scheduling.Window{Start: req.StartTime, End: req.EndTime}
	if err := window.Validate(); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	user, ok := h.findPharmacist(c, session.UserID)
	if !ok {
		return
	}
	user.AvailableHours = &window
	if req.Available != nil {
		user.Available = *req.Available
	}

	if err := h.Users.Update(c.Request.Context(), user); err != nil {
		respondError(c, h.Log, err)
		return
	}

	h.Log.Info("availability updated",
		zap.String("pharmacist_id", user.ID),
		zap.String("start", window.Start),
		zap.String("end", window.End),
	)

	resp, err := availabilityOf(user)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Availability updated successfully", resp)
}
