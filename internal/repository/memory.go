package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"telepharmacy-server/internal/models"
)

// MemoryStore keeps users and appointments in process memory. It backs local
// runs without a database and the HTTP tests.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]models.User
	appointments map[string]models.Appointment
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        map[string]models.User{},
		appointments: map[string]models.Appointment{},
	}
}

// Users returns the store's UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Appointments returns the store's AppointmentRepository.
func (s *MemoryStore) Appointments() AppointmentRepository { return memoryAppointments{s} }

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrDuplicate
		}
	}
	stampNew(&user.BaseModel)
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) ListPharmacists(_ context.Context) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := []models.User{}
	for _, u := range r.s.users {
		if u.Role == models.RolePharmacist {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].DisplayName < users[j].DisplayName })
	return users, nil
}

func (r memoryUsers) Update(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	r.s.users[user.ID] = *user
	return nil
}

type memoryAppointments struct{ s *MemoryStore }

func (r memoryAppointments) Create(_ context.Context, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stampNew(&appointment.BaseModel)
	if _, ok := r.s.appointments[appointment.ID]; ok {
		return ErrDuplicate
	}
	if appointment.Version == 0 {
		appointment.Version = 1
	}
	r.s.appointments[appointment.ID] = *appointment
	return nil
}

func (r memoryAppointments) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r memoryAppointments) ListByPatient(_ context.Context, patientID string) ([]models.Appointment, error) {
	return r.listBy(func(a models.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r memoryAppointments) ListByPharmacist(_ context.Context, pharmacistID string) ([]models.Appointment, error) {
	return r.listBy(func(a models.Appointment) bool { return a.PharmacistID == pharmacistID }), nil
}

func (r memoryAppointments) listBy(match func(models.Appointment) bool) []models.Appointment {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	appointments := []models.Appointment{}
	for _, a := range r.s.appointments {
		if match(a) {
			appointments = append(appointments, a)
		}
	}
	sort.Slice(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if !a.ScheduledDate.Equal(b.ScheduledDate) {
			return a.ScheduledDate.After(b.ScheduledDate)
		}
		return a.ScheduledTime > b.ScheduledTime
	})
	return appointments
}

func (r memoryAppointments) UpdateStatus(_ context.Context, u StatusUpdate) error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrInvalidAppointment, u.Status)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[u.ID]
	if !ok {
		return ErrNotFound
	}
	if a.Version != u.ExpectedVersion {
		return ErrVersionConflict
	}
	a.Status = u.Status
	a.UpdatedAt = u.UpdatedAt
	a.Version++
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	if u.Prescription != nil {
		a.Prescription = *u.Prescription
	}
	r.s.appointments[u.ID] = a
	return nil
}
