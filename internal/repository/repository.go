// Package repository persists users and appointments. Two backends implement
// the same contracts: gorm over MySQL and the MongoDB document store.
package repository

import (
	"context"
	"errors"
	"time"

	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/scheduling"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("record already exists")
	// ErrVersionConflict is returned when a compare-and-swap update observes a newer version.
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// UserRepository stores user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListPharmacists(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// StatusUpdate describes a compare-and-swap status change.
type StatusUpdate struct {
	ID              string
	ExpectedVersion int64
	Status          scheduling.Status
	UpdatedAt       time.Time
	// Optional fields written alongside the status when non-nil.
	Notes        *string
	Prescription *string
}

// AppointmentRepository stores appointments. Records are never deleted.
type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error)
	ListByPharmacist(ctx context.Context, pharmacistID string) ([]models.Appointment, error)
	// UpdateStatus applies u only if the stored version equals u.ExpectedVersion,
	// then increments the version.
	UpdateStatus(ctx context.Context, u StatusUpdate) error
}
