package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"telepharmacy-server/internal/models"
)

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository returns a UserRepository backed by gorm.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *gormUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *gormUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *gormUserRepository) findOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

func (r *gormUserRepository) ListPharmacists(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ?", models.RolePharmacist).
		Order("display_name asc").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list pharmacists: %w", err)
	}
	return users, nil
}

func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Save(user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", res.Error)
	}
	return nil
}

type gormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository returns an AppointmentRepository backed by gorm.
func NewGormAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &gormAppointmentRepository{db: db}
}

func (r *gormAppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

func (r *gormAppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return &appointment, nil
}

func (r *gormAppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]models.Appointment, error) {
	return r.listBy(ctx, "patient_id = ?", patientID)
}

func (r *gormAppointmentRepository) ListByPharmacist(ctx context.Context, pharmacistID string) ([]models.Appointment, error) {
	return r.listBy(ctx, "pharmacist_id = ?", pharmacistID)
}

func (r *gormAppointmentRepository) listBy(ctx context.Context, query string, arg interface{}) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("scheduled_date desc, scheduled_time desc").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func (r *gormAppointmentRepository) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidAppointment, u.Status)
	}

	updates := map[string]interface{}{
		"status":     u.Status,
		"updated_at": u.UpdatedAt,
		"version":    gorm.Expr("version + 1"),
	}
	if u.Notes != nil {
		updates["notes"] = *u.Notes
	}
	if u.Prescription != nil {
		updates["prescription"] = *u.Prescription
	}

	res := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ? AND version = ?", u.ID, u.ExpectedVersion).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update appointment status: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Appointment{}).Where("id = ?", u.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}
