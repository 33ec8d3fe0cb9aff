package models

import (
	"golang.org/x/crypto/bcrypt"

	"telepharmacy-server/internal/scheduling"
)

// Role enum
type Role string

const (
	RolePatient    Role = "patient"
	RolePharmacist Role = "pharmacist"
)

// Valid reports whether r is one of the supported roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RolePharmacist
}

// Party maps the role onto its side of an appointment.
func (r Role) Party() scheduling.Party {
	return scheduling.Party(r)
}

// User represents a user in the system
type User struct {
	BaseModel   `bson:",inline"`
	Email       string `gorm:"uniqueIndex;size:255;not null" json:"email" bson:"email"`
	Password    string `gorm:"size:255;not null" json:"-" bson:"password"` // Never send password in JSON
	DisplayName string `gorm:"size:255;not null" json:"displayName" bson:"displayName"`
	PhoneNumber string `gorm:"size:32" json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Role        Role   `gorm:"size:20;index;not null" json:"role" bson:"role"`

	// Pharmacist only
	LicenseNumber     string             `gorm:"size:64" json:"licenseNumber,omitempty" bson:"licenseNumber,omitempty"`
	Specialization    string             `gorm:"size:255" json:"specialization,omitempty" bson:"specialization,omitempty"`
	YearsOfExperience int                `json:"yearsOfExperience,omitempty" bson:"yearsOfExperience,omitempty"`
	Available         bool               `gorm:"default:false" json:"available" bson:"available"`
	AvailableHours    *scheduling.Window `gorm:"type:varchar(64);serializer:json" json:"availableHours,omitempty" bson:"availableHours,omitempty"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	DisplayName       string             `json:"displayName"`
	PhoneNumber       string             `json:"phoneNumber,omitempty"`
	Role              Role               `json:"role"`
	LicenseNumber     string             `json:"licenseNumber,omitempty"`
	Specialization    string             `json:"specialization,omitempty"`
	YearsOfExperience int                `json:"yearsOfExperience,omitempty"`
	Available         bool               `json:"available"`
	AvailableHours    *scheduling.Window `json:"availableHours,omitempty"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Hours returns the pharmacist's availability, falling back to the default window.
func (u *User) Hours() scheduling.Window {
	return scheduling.ResolveWindow(u.AvailableHours)
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	s := UserSanitized{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
	}
	if u.Role == RolePharmacist {
		hours := u.Hours()
		s.LicenseNumber = u.LicenseNumber
		s.Specialization = u.Specialization
		s.YearsOfExperience = u.YearsOfExperience
		s.Available = u.Available
		s.AvailableHours = &hours
	}
	return s
}
