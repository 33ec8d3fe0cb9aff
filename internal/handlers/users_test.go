package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telepharmacy-server/internal/middleware"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/scheduling"
)

func seedUsers(t *testing.T) repository.UserRepository {
	t.Helper()
	users := repository.NewMemoryStore().Users()
	ctx := context.Background()
	for _, u := range []*models.User{
		{BaseModel: models.BaseModel{ID: "ph-1"}, Email: "a@example.com", DisplayName: "Anong", Role: models.RolePharmacist, Available: true, LicenseNumber: "L1"},
		{BaseModel: models.BaseModel{ID: "ph-2"}, Email: "b@example.com", DisplayName: "Boon", Role: models.RolePharmacist, Available: false,
			AvailableHours: &scheduling.Window{Start: "13:00", End: "13:30"}},
		{BaseModel: models.BaseModel{ID: "pt-1"}, Email: "c@example.com", DisplayName: "Chai", Role: models.RolePatient},
	} {
		require.NoError(t, users.Create(ctx, u))
	}
	return users
}

func pharmacistRouter(users repository.UserRepository, s middleware.Session) *gin.Engine {
	h := NewPharmacistHandler(users, bangkok, nopLog)
	r := gin.New()
	r.Use(withSession(s))
	r.GET("/pharmacists", h.ListPharmacists)
	r.GET("/pharmacists/:id", h.GetPharmacist)
	r.GET("/pharmacists/:id/slots", h.GetSlots)
	r.GET("/settings/availability", h.GetAvailability)
	r.PUT("/settings/availability", h.UpdateAvailability)
	return r
}

var patientSession = middleware.Session{UserID: "pt-1", Role: models.RolePatient, DisplayName: "Chai"}

func TestListPharmacists(t *testing.T) {
	r := pharmacistRouter(seedUsers(t), patientSession)

	var all []models.UserSanitized
	w := doJSON(t, r, http.MethodGet, "/pharmacists", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &all)
	require.Len(t, all, 2)
	assert.Equal(t, "Anong", all[0].DisplayName)

	var available []models.UserSanitized
	decode(t, doJSON(t, r, http.MethodGet, "/pharmacists?available=true", nil), &available)
	require.Len(t, available, 1)
	assert.Equal(t, "ph-1", available[0].ID)
}

func TestGetPharmacist(t *testing.T) {
	r := pharmacistRouter(seedUsers(t), patientSession)

	assert.Equal(t, http.StatusOK, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/pharmacists/pt-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/pharmacists/nobody", nil).Code)
}

func TestGetSlots(t *testing.T) {
	r := pharmacistRouter(seedUsers(t), patientSession)

	var resp SlotsResponse
	w := doJSON(t, r, http.MethodGet, "/pharmacists/ph-2/slots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, []string{"13:00", "13:10", "13:20"}, resp.Slots)
	assert.False(t, resp.Available)

	decode(t, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots", nil), &resp)
	assert.Len(t, resp.Slots, 48)
	assert.Equal(t, "09:00", resp.Slots[0])
	assert.Equal(t, "16:50", resp.Slots[47])

	tomorrow := time.Now().In(bangkok).AddDate(0, 0, 1).Format(scheduling.DateLayout)
	decode(t, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots?date="+tomorrow, nil), &resp)
	assert.Len(t, resp.Slots, 48)
	assert.Equal(t, tomorrow, resp.Date)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots?date=tomorrow", nil).Code)
}

func TestGetSlotsForTodayDropsStartedSlots(t *testing.T) {
	h := NewPharmacistHandler(seedUsers(t), bangkok, nopLog)
	h.Now = func() time.Time { return time.Date(2026, 3, 14, 16, 25, 0, 0, bangkok) }
	r := gin.New()
	r.GET("/pharmacists/:id/slots", h.GetSlots)

	var resp SlotsResponse
	w := doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots?date=2026-03-14", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, []string{"16:30", "16:40", "16:50"}, resp.Slots)

	decode(t, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots?date=2026-03-13", nil), &resp)
	assert.Empty(t, resp.Slots)
	assert.NotNil(t, resp.Slots)

	decode(t, doJSON(t, r, http.MethodGet, "/pharmacists/ph-1/slots?date=2026-03-15", nil), &resp)
	assert.Len(t, resp.Slots, 48)
}

func TestUpcomingDropsStartedSlots(t *testing.T) {
	date := time.Date(2026, 3, 14, 0, 0, 0, 0, bangkok)
	now := time.Date(2026, 3, 14, 9, 10, 0, 0, bangkok)
	assert.Equal(t, []string{"09:10", "09:20"}, upcoming(date, []string{"09:00", "09:10", "09:20"}, now))
}

func TestAvailability(t *testing.T) {
	users := seedUsers(t)
	r := pharmacistRouter(users, middleware.Session{UserID: "ph-1", Role: models.RolePharmacist})

	var resp AvailabilityResponse
	w := doJSON(t, r, http.MethodGet, "/settings/availability", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, scheduling.DefaultWindow, resp.AvailableHours)

	w = doJSON(t, r, http.MethodPut, "/settings/availability", map[string]interface{}{"startTime": "10:00", "endTime": "10:30", "available": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	assert.Equal(t, []string{"10:00", "10:10", "10:20"}, resp.Slots)
	assert.False(t, resp.Available)

	stored, err := users.FindByID(context.Background(), "ph-1")
	require.NoError(t, err)
	require.NotNil(t, stored.AvailableHours)
	assert.Equal(t, "10:30", stored.AvailableHours.End)

	for _, body := range []map[string]string{
		{"startTime": "17:00", "endTime": "09:00"},
		{"startTime": "10:00", "endTime": "10:00"},
		{"startTime": "10", "endTime": "11:00"},
		{"startTime": "10:00"},
	} {
		w = doJSON(t, r, http.MethodPut, "/settings/availability", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	stored, err = users.FindByID(context.Background(), "ph-1")
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.AvailableHours.Start, "rejected windows are not saved")
}
