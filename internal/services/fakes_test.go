package services

import (
	"context"
	"sort"
	"sync"

	"github.com/stretchr/testify/mock"

	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/repository"
)

type memoryAppointments struct {
	mu    sync.Mutex
	items map[string]models.Appointment
}

func newMemoryAppointments() *memoryAppointments {
	return &memoryAppointments{items: map[string]models.Appointment{}}
}

func (r *memoryAppointments) Create(_ context.Context, a *models.Appointment) error {
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[a.ID]; ok {
		return repository.ErrDuplicate
	}
	r.items[a.ID] = *a
	return nil
}

func (r *memoryAppointments) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *memoryAppointments) list(match func(models.Appointment) bool) []models.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Appointment{}
	for _, a := range r.items {
		if match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledDate.Equal(out[j].ScheduledDate) {
			return out[i].ScheduledDate.After(out[j].ScheduledDate)
		}
		return out[i].ScheduledTime > out[j].ScheduledTime
	})
	return out
}

func (r *memoryAppointments) ListByPatient(_ context.Context, id string) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return a.PatientID == id }), nil
}

func (r *memoryAppointments) ListByPharmacist(_ context.Context, id string) ([]models.Appointment, error) {
	return r.list(func(a models.Appointment) bool { return a.PharmacistID == id }), nil
}

func (r *memoryAppointments) UpdateStatus(_ context.Context, u repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Version != u.ExpectedVersion {
		return repository.ErrVersionConflict
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
	r.items[u.ID] = a
	return nil
}

// bump simulates a concurrent writer.
func (r *memoryAppointments) bump(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.items[id]
	a.Version++
	r.items[id] = a
}

type memoryUsers struct {
	items map[string]models.User
}

func (r *memoryUsers) Create(_ context.Context, u *models.User) error {
	r.items[u.ID] = *u
	return nil
}

func (r *memoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.items {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryUsers) ListPharmacists(_ context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range r.items {
		if u.Role == models.RolePharmacist {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryUsers) Update(_ context.Context, u *models.User) error {
	if _, ok := r.items[u.ID]; !ok {
		return repository.ErrNotFound
	}
	r.items[u.ID] = *u
	return nil
}

type mockTokenIssuer struct {
	mock.Mock
}

func (m *mockTokenIssuer) Issue(identity, room string) (string, error) {
	args := m.Called(identity, room)
	return args.String(0), args.Error(1)
}
