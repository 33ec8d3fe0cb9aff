package models

import (
	"errors"
	"fmt"
	"time"

	"telepharmacy-server/internal/scheduling"
)

// DefaultDuration is the length of a booked consultation in minutes.
const DefaultDuration = 10

// ErrInvalidAppointment is returned by Validate for records that break the data model.
var ErrInvalidAppointment = errors.New("invalid appointment")

// Appointment represents a consultation between a patient and a pharmacist.
type Appointment struct {
	BaseModel      `bson:",inline"`
	PatientID      string            `gorm:"size:36;index;not null" json:"patientId" bson:"patientId"`
	PatientName    string            `gorm:"size:255" json:"patientName" bson:"patientName"`
	PharmacistID   string            `gorm:"size:36;index;not null" json:"pharmacistId" bson:"pharmacistId"`
	PharmacistName string            `gorm:"size:255" json:"pharmacistName" bson:"pharmacistName"`
	ScheduledDate  time.Time         `gorm:"type:date;index;not null" json:"scheduledDate" bson:"scheduledDate"`
	ScheduledTime  string            `gorm:"size:5;not null" json:"scheduledTime" bson:"scheduledTime"`
	Duration       int               `gorm:"not null;default:10" json:"duration" bson:"duration"`
	Status         scheduling.Status `gorm:"size:20;default:'scheduled'" json:"status" bson:"status"`
	Reason         string            `gorm:"size:255" json:"reason,omitempty" bson:"reason,omitempty"`
	Notes          string            `gorm:"type:text" json:"notes,omitempty" bson:"notes,omitempty"`
	Prescription   string            `gorm:"type:text" json:"prescription,omitempty" bson:"prescription,omitempty"`
	RoomID         string            `gorm:"size:64" json:"roomId,omitempty" bson:"roomId,omitempty"`
	Version        int64             `gorm:"not null;default:1" json:"version" bson:"version"`
}

// Validate checks the record invariants before it is persisted.
func (a *Appointment) Validate() error {
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidAppointment, a.Status)
	}
	if _, err := scheduling.ParseClock(a.ScheduledTime); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAppointment, err)
	}
	if a.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidAppointment)
	}
	if a.PatientID == "" || a.PharmacistID == "" {
		return fmt.Errorf("%w: patient and pharmacist are required", ErrInvalidAppointment)
	}
	return nil
}

// HasParticipant reports whether userID is the patient or the pharmacist.
func (a *Appointment) HasParticipant(userID string) bool {
	return userID != "" && (userID == a.PatientID || userID == a.PharmacistID)
}

// CanJoin evaluates call eligibility at now.
func (a *Appointment) CanJoin(now time.Time) (bool, error) {
	return scheduling.CanJoin(a.Status, a.ScheduledDate, a.ScheduledTime, a.Duration, now)
}
