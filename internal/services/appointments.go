// Package services holds the appointment application layer. Handlers pass the
// caller's session explicitly; nothing here reads request state.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telepharmacy-server/internal/metrics"
	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/redisstore"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/scheduling"
)

var (
	// ErrValidation wraps every rejected booking or transition input.
	ErrValidation = errors.New("invalid request")
	// ErrForbidden is returned when the caller's role may not use the operation.
	ErrForbidden = errors.New("operation not permitted for this role")
	// ErrCallNotOpen is returned when the video call cannot be entered right now.
	ErrCallNotOpen = errors.New("the call is not open for this appointment")
)

// LockTTL bounds how long a transition may hold the appointment lock.
const LockTTL = 5 * time.Second

// Locker serializes transitions on the same appointment.
type Locker interface {
	TryLock(ctx context.Context, key string, expiration time.Duration) (*redisstore.Lock, error)
	Unlock(ctx context.Context, lock *redisstore.Lock) error
}

// TokenIssuer mints video room tokens.
type TokenIssuer interface {
	Issue(identity, room string) (string, error)
}

// Dependencies wires an AppointmentService.
type Dependencies struct {
	Appointments repository.AppointmentRepository
	Users        repository.UserRepository
	Locker       Locker
	Tokens       TokenIssuer
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Location     *time.Location
	Now          func() time.Time
}

// AppointmentService books appointments and drives their lifecycle.
type AppointmentService struct {
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	locker       Locker
	tokens       TokenIssuer
	metrics      *metrics.Metrics
	log          *zap.Logger
	loc          *time.Location
	now          func() time.Time
}

// NewAppointmentService creates an AppointmentService. Locker, Metrics and
// Logger are optional.
func NewAppointmentService(deps Dependencies) *AppointmentService {
	s := &AppointmentService{
		appointments: deps.Appointments,
		users:        deps.Users,
		locker:       deps.Locker,
		tokens:       deps.Tokens,
		metrics:      deps.Metrics,
		log:          deps.Logger,
		loc:          deps.Location,
		now:          deps.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the clinic time zone used for dates and join windows.
func (s *AppointmentService) Location() *time.Location {
	return s.loc
}

// View is an appointment as returned to clients, with the derived join window.
type View struct {
	models.Appointment
	ScheduledDate string    `json:"scheduledDate"`
	CanJoin       bool      `json:"canJoin"`
	JoinOpensAt   time.Time `json:"joinOpensAt"`
	JoinClosesAt  time.Time `json:"joinClosesAt"`
}

func (s *AppointmentService) view(a models.Appointment) View {
	a.ScheduledDate = scheduling.InLocation(a.ScheduledDate, s.loc)
	v := View{Appointment: a, ScheduledDate: a.ScheduledDate.Format(scheduling.DateLayout)}

	opens, closes, err := scheduling.JoinWindow(a.ScheduledDate, a.ScheduledTime, a.Duration)
	if err != nil {
		s.log.Warn("appointment has malformed time", zap.String("appointment_id", a.ID), zap.Error(err))
		return v
	}
	v.JoinOpensAt = opens
	v.JoinClosesAt = closes
	v.CanJoin, _ = a.CanJoin(s.now())
	return v
}

// BookingRequest is a patient's request for a slot.
type BookingRequest struct {
	PharmacistID string
	Date         string
	Time         string
	Reason       string
	Notes        string
}

// Book creates a scheduled appointment for the calling patient.
func (s *AppointmentService) Book(ctx context.Context, session middleware.Session, req BookingRequest) (*View, error) {
	view, err := s.book(ctx, session, req)
	if err != nil {
		s.metrics.ObserveBooking(resultLabel(err))
		return nil, err
	}
	s.metrics.ObserveBooking("ok")
	return view, nil
}

func (s *AppointmentService) book(ctx context.Context, session middleware.Session, req BookingRequest) (*View, error) {
	if session.Role != models.RolePatient {
		return nil, fmt.Errorf("%w: only patients can book appointments", ErrForbidden)
	}

	date, err := scheduling.ParseDate(req.Date, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	now := s.now().In(s.loc)
	if date.Before(scheduling.InLocation(now, s.loc)) {
		return nil, fmt.Errorf("%w: date %s is in the past", ErrValidation, req.Date)
	}

	patientName, err := s.displayName(ctx, session)
	if err != nil {
		return nil, err
	}

	pharmacist, err := s.users.FindByID(ctx, req.PharmacistID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("pharmacist %s: %w", req.PharmacistID, repository.ErrNotFound)
		}
		return nil, err
	}
	if pharmacist.Role != models.RolePharmacist {
		return nil, fmt.Errorf("pharmacist %s: %w", req.PharmacistID, repository.ErrNotFound)
	}
	if !pharmacist.Available {
		return nil, fmt.Errorf("%w: pharmacist is not accepting appointments", ErrValidation)
	}

	ok, err := scheduling.IsSlot(pharmacist.AvailableHours, req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an available slot", ErrValidation, req.Time)
	}
	start, err := scheduling.AppointmentInstant(date, req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if start.Before(now) {
		return nil, fmt.Errorf("%w: slot %s %s has already started", ErrValidation, req.Date, req.Time)
	}

	id := uuid.NewString()
	appointment := &models.Appointment{
		BaseModel:      models.BaseModel{ID: id},
		PatientID:      session.UserID,
		PatientName:    patientName,
		PharmacistID:   pharmacist.ID,
		PharmacistName: pharmacist.DisplayName,
		// Dates are persisted as UTC midnight of the clinic calendar day.
		ScheduledDate: scheduling.InLocation(date, time.UTC),
		ScheduledTime: req.Time,
		Duration:      models.DefaultDuration,
		Status:        scheduling.StatusScheduled,
		Reason:        req.Reason,
		Notes:         req.Notes,
		RoomID:        id,
		Version:       1,
	}
	if err := s.appointments.Create(ctx, appointment); err != nil {
		s.log.Error("create appointment failed", zap.String("patient_id", session.UserID), zap.Error(err))
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", appointment.ID),
		zap.String("patient_id", appointment.PatientID),
		zap.String("pharmacist_id", appointment.PharmacistID),
		zap.String("date", req.Date),
		zap.String("time", req.Time),
	)
	v := s.view(*appointment)
	return &v, nil
}

// List returns the caller's appointments, newest first.
func (s *AppointmentService) List(ctx context.Context, session middleware.Session) ([]View, error) {
	var (
		list []models.Appointment
		err  error
	)
	switch session.Role {
	case models.RolePatient:
		list, err = s.appointments.ListByPatient(ctx, session.UserID)
	case models.RolePharmacist:
		list, err = s.appointments.ListByPharmacist(ctx, session.UserID)
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		s.log.Error("list appointments failed", zap.String("user_id", session.UserID), zap.Error(err))
		return nil, err
	}

	views := make([]View, 0, len(list))
	for _, a := range list {
		views = append(views, s.view(a))
	}
	return views, nil
}

// Get returns one appointment the caller participates in.
func (s *AppointmentService) Get(ctx context.Context, session middleware.Session, id string) (*View, error) {
	a, err := s.load(ctx, session, id)
	if err != nil {
		return nil, err
	}
	v := s.view(*a)
	return &v, nil
}

func (s *AppointmentService) load(ctx context.Context, session middleware.Session, id string) (*models.Appointment, error) {
	a, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("find appointment failed", zap.String("appointment_id", id), zap.Error(err))
		}
		return nil, err
	}
	if !a.HasParticipant(session.UserID) {
		return nil, scheduling.ErrNotParticipant
	}
	return a, nil
}

// TransitionInput carries optional data sent with a status change.
type TransitionInput struct {
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64
	Notes           *string
	Prescription    *string
}

// Transition applies action to the appointment on behalf of the caller.
func (s *AppointmentService) Transition(ctx context.Context, session middleware.Session, id string, action scheduling.Action, in TransitionInput) (*View, error) {
	v, err := s.transition(ctx, session, id, action, in)
	if err != nil {
		s.metrics.ObserveTransition(string(action), resultLabel(err))
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), "ok")
	return v, nil
}

func (s *AppointmentService) transition(ctx context.Context, session middleware.Session, id string, action scheduling.Action, in TransitionInput) (*View, error) {
	if action != scheduling.ActionComplete && (in.Notes != nil || in.Prescription != nil) {
		return nil, fmt.Errorf("%w: notes and prescription can only be recorded when completing", ErrValidation)
	}

	a, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scheduling.Authorize(action, session.Actor(), a.PatientID, a.PharmacistID); err != nil {
		return nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != a.Version {
		return nil, repository.ErrVersionConflict
	}

	next, err := scheduling.Next(a.Status, action)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if action == scheduling.ActionStart {
		local := *a
		local.ScheduledDate = scheduling.InLocation(a.ScheduledDate, s.loc)
		ok, err := local.CanJoin(now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if !ok {
			return nil, ErrCallNotOpen
		}
	}

	if s.locker != nil {
		lock, err := s.locker.TryLock(ctx, "appointment:"+a.ID, LockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx), lock); err != nil {
				s.log.Warn("release appointment lock failed", zap.String("appointment_id", a.ID), zap.Error(err))
			}
		}()
	}

	update := repository.StatusUpdate{
		ID:              a.ID,
		ExpectedVersion: a.Version,
		Status:          next,
		UpdatedAt:       now.UTC(),
		Notes:           in.Notes,
		Prescription:    in.Prescription,
	}
	if err := s.appointments.UpdateStatus(ctx, update); err != nil {
		if !errors.Is(err, repository.ErrVersionConflict) && !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("update appointment status failed", zap.String("appointment_id", a.ID), zap.Error(err))
		}
		return nil, err
	}

	s.log.Info("appointment status changed",
		zap.String("appointment_id", a.ID),
		zap.String("actor_id", session.UserID),
		zap.String("action", string(action)),
		zap.String("from", string(a.Status)),
		zap.String("to", string(next)),
	)

	a.Status = next
	a.Version++
	a.UpdatedAt = update.UpdatedAt
	if in.Notes != nil {
		a.Notes = *in.Notes
	}
	if in.Prescription != nil {
		a.Prescription = *in.Prescription
	}
	v := s.view(*a)
	return &v, nil
}

// JoinResult is what a participant needs to enter the video room.
type JoinResult struct {
	Token       string `json:"token"`
	RoomName    string `json:"roomName"`
	Identity    string `json:"identity"`
	Appointment View   `json:"appointment"`
}

// Join mints a video token for a participant while the call is open.
func (s *AppointmentService) Join(ctx context.Context, session middleware.Session, id string) (*JoinResult, error) {
	a, err := s.load(ctx, session, id)
	if err != nil {
		return nil, err
	}

	v := s.view(*a)
	if !v.CanJoin {
		return nil, ErrCallNotOpen
	}

	room := a.RoomID
	if room == "" {
		room = a.ID
	}
	identity, err := s.displayName(ctx, session)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(identity, room)
	if err != nil {
		s.log.Error("issue video token failed", zap.String("appointment_id", a.ID), zap.Error(err))
		return nil, err
	}
	s.metrics.ObserveVideoToken("join")

	return &JoinResult{Token: token, RoomName: room, Identity: identity, Appointment: v}, nil
}

// displayName reads the caller's current name from the user record, since the
// name carried by the access token goes stale after a profile update.
func (s *AppointmentService) displayName(ctx context.Context, session middleware.Session) (string, error) {
	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("user %s: %w", session.UserID, repository.ErrNotFound)
		}
		s.log.Error("find user failed", zap.String("user_id", session.UserID), zap.Error(err))
		return "", err
	}
	if user.DisplayName == "" {
		return user.ID, nil
	}
	return user.DisplayName, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrForbidden), errors.Is(err, scheduling.ErrNotParticipant), errors.Is(err, scheduling.ErrActorRole):
		return "forbidden"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, scheduling.ErrIllegalTransition):
		return "illegal"
	case errors.Is(err, repository.ErrVersionConflict), errors.Is(err, redisstore.ErrLocked):
		return "conflict"
	case errors.Is(err, ErrCallNotOpen):
		return "not_open"
	default:
		return "error"
	}
}
