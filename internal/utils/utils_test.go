package utils

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telepharmacy-server/internal/config"
	"telepharmacy-server/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name string
		in   RegistrationInput
		want error
	}{
		{
			name: "patient ok",
			in:   RegistrationInput{Password: "secret1", ConfirmPassword: "secret1", Role: models.RolePatient},
		},
		{
			name: "pharmacist ok",
			in:   RegistrationInput{Password: "secret1", ConfirmPassword: "secret1", Role: models.RolePharmacist, LicenseNumber: "PH-1"},
		},
		{
			name: "exactly six characters",
			in:   RegistrationInput{Password: "abcdef", ConfirmPassword: "abcdef", Role: models.RolePatient},
		},
		{
			name: "short password",
			in:   RegistrationInput{Password: "abcde", ConfirmPassword: "abcde", Role: models.RolePatient},
			want: ErrPasswordTooShort,
		},
		{
			name: "mismatch",
			in:   RegistrationInput{Password: "secret1", ConfirmPassword: "secret2", Role: models.RolePatient},
			want: ErrPasswordMismatch,
		},
		{
			name: "unknown role",
			in:   RegistrationInput{Password: "secret1", ConfirmPassword: "secret1", Role: "admin"},
			want: ErrInvalidRole,
		},
		{
			name: "pharmacist without license",
			in:   RegistrationInput{Password: "secret1", ConfirmPassword: "secret1", Role: models.RolePharmacist, LicenseNumber: "  "},
			want: ErrLicenseRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type slotRequest struct {
	Date string `json:"date" binding:"required,date"`
	Time string `json:"time" binding:"required,clock"`
}

func bind(t *testing.T, body string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req slotRequest
	return w, BindAndValidate(c, &req)
}

func TestBindAndValidate(t *testing.T) {
	_, ok := bind(t, `{"date":"2026-02-01","time":"09:10"}`)
	assert.True(t, ok)

	w, ok := bind(t, `{"date":"2026-02-31","time":"09:10"}`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Date must be YYYY-MM-DD")

	w, ok = bind(t, `{"date":"2026-02-01","time":"9:10"}`)
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "Time must be HH:MM")

	w, ok = bind(t, `{"date":`)
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "Invalid request payload")
}

func TestAddValidations(t *testing.T) {
	assert.NotPanics(t, RegisterValidators)

	v := validator.New()
	require.NoError(t, AddValidations(v))

	type window struct {
		Start string `validate:"clock"`
		Day   string `validate:"date"`
	}
	assert.NoError(t, v.Struct(window{Start: "09:00", Day: "2026-02-01"}))
	assert.Error(t, v.Struct(window{Start: "9:00", Day: "2026-02-01"}))
	assert.Error(t, v.Struct(window{Start: "09:00", Day: "01/02/2026"}))
}

type optionalRequest struct {
	Version *int64 `json:"version" binding:"omitempty,gte=1"`
}

func bindOptional(t *testing.T, body string, chunked bool) (*httptest.ResponseRecorder, optionalRequest, bool) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if chunked {
		c.Request.ContentLength = -1
		c.Request.TransferEncoding = []string{"chunked"}
	}

	var req optionalRequest
	ok := BindOptionalJSON(c, &req)
	return w, req, ok
}

func TestBindOptionalJSON(t *testing.T) {
	_, req, ok := bindOptional(t, "", false)
	assert.True(t, ok)
	assert.Nil(t, req.Version)

	_, req, ok = bindOptional(t, "", true)
	assert.True(t, ok)
	assert.Nil(t, req.Version)

	_, req, ok = bindOptional(t, `{"version":3}`, true)
	require.True(t, ok)
	require.NotNil(t, req.Version)
	assert.Equal(t, int64(3), *req.Version)

	w, _, ok := bindOptional(t, `{"version":0}`, true)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Validation failed")

	w, _, ok = bindOptional(t, `{"version":`, false)
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "Invalid request payload")
}

func TestErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Conflict(c, "stale")

	var resp ResponseData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "stale", resp.Error)
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:                 "access",
		JWTRefreshSecret:          "refresh",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
	}
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}, Role: models.RolePharmacist, DisplayName: "Somchai"}

	access, refresh, err := GenerateTokens(user, cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(access, "access")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RolePharmacist, claims.Role)
	assert.Equal(t, "Somchai", claims.DisplayName)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)

	_, err = ValidateToken(refresh, "access")
	assert.Error(t, err, "refresh token must not validate with the access secret")

	_, second, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, refresh, second)
}
