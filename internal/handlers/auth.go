package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"telepharmacy-server/internal/config"
	"telepharmacy-server/internal/models"
	"telepharmacy-server/internal/repository"
	"telepharmacy-server/internal/utils"
)

const refreshCookie = "refresh_token"

// RefreshTokenStore tracks live refresh tokens.
type RefreshTokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	Valid(ctx context.Context, token, userID string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Users  repository.UserRepository
	Tokens RefreshTokenStore
	Cfg    *config.Config
	Log    *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users repository.UserRepository, tokens RefreshTokenStore, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Users: users, Tokens: tokens, Cfg: cfg, Log: log}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required"`
	ConfirmPassword   string `json:"confirmPassword" binding:"required"`
	DisplayName       string `json:"displayName" binding:"required"`
	PhoneNumber       string `json:"phoneNumber"`
	Role              string `json:"role" binding:"required"`
	LicenseNumber     string `json:"licenseNumber"`
	Specialization    string `json:"specialization"`
	YearsOfExperience int    `json:"yearsOfExperience" binding:"gte=0"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Register handles user registration. A successful registration signs the user in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return // Error response handled by BindAndValidate
	}

	role := models.Role(strings.ToLower(req.Role))
	err := utils.ValidateRegistration(utils.RegistrationInput{
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            role,
		LicenseNumber:   req.LicenseNumber,
	})
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := h.Users.FindByEmail(c.Request.Context(), email); err == nil {
		utils.Conflict(c, "User with this email already exists")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		respondError(c, h.Log, err)
		return
	}

	user := models.User{
		Email:       email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		PhoneNumber: req.PhoneNumber,
		Role:        role,
	}
	if role == models.RolePharmacist {
		user.LicenseNumber = strings.TrimSpace(req.LicenseNumber)
		user.Specialization = req.Specialization
		user.YearsOfExperience = req.YearsOfExperience
		user.Available = true
	}

	if err := user.SetPassword(req.Password); err != nil {
		respondError(c, h.Log, err)
		return
	}

	if err := h.Users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "User with this email already exists")
			return
		}
		respondError(c, h.Log, err)
		return
	}

	h.Log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	resp, ok := h.startSession(c, &user)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, utils.ResponseData{
		Status:  http.StatusCreated,
		Message: "User registered successfully",
		Data:    resp,
	})
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			respondError(c, h.Log, err)
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	resp, ok := h.startSession(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", resp)
}

// startSession issues and records a token pair and sets the refresh cookie.
func (h *AuthHandler) startSession(c *gin.Context, user *models.User) (*LoginResponse, bool) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		respondError(c, h.Log, err)
		return nil, false
	}
	if err := h.Tokens.Save(c.Request.Context(), refreshToken, user.ID, h.Cfg.RefreshTTL()); err != nil {
		respondError(c, h.Log, err)
		return nil, false
	}

	h.setRefreshCookie(c, refreshToken, int(h.Cfg.RefreshTTL().Seconds()))
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	}, true
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(
		refreshCookie,
		value,
		maxAge,
		"/",
		"",                                 // Domain (empty means current domain)
		h.Cfg.Environment != "development", // Secure (true in prod, false in dev)
		true,                               // HTTP only
	)
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to the body.
func refreshTokenFrom(c *gin.Context) (string, bool) {
	if token, err := c.Cookie(refreshCookie); err == nil && token != "" {
		return token, true
	}
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return "", false
	}
	return req.RefreshToken, true
}

// RefreshToken handles refreshing an access token using a refresh token.
// The presented refresh token is revoked and replaced.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, ok := refreshTokenFrom(c)
	if !ok {
		return
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token structure or signature: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	live, err := h.Tokens.Valid(ctx, token, claims.UserID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	if !live {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	user, err := h.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Unauthorized(c, "User associated with token no longer exists")
		} else {
			respondError(c, h.Log, err)
		}
		return
	}

	if err := h.Tokens.Revoke(ctx, token); err != nil {
		respondError(c, h.Log, err)
		return
	}

	resp, ok := h.startSession(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Access token refreshed successfully", resp)
}

// Logout revokes the refresh token and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := refreshTokenFrom(c)
	if !ok {
		return
	}

	if err := h.Tokens.Revoke(c.Request.Context(), token); err != nil {
		respondError(c, h.Log, err)
		return
	}

	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	user, err := h.Users.FindByID(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			respondError(c, h.Log, err)
		}
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
// Email and role cannot be changed.
type UpdateProfileRequest struct {
	DisplayName       *string `json:"displayName" binding:"omitempty,min=1"`
	PhoneNumber       *string `json:"phoneNumber"`
	Specialization    *string `json:"specialization"`
	YearsOfExperience *int    `json:"yearsOfExperience" binding:"omitempty,gte=0"`
	Available         *bool   `json:"available"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	session, ok := requireSession(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Users.FindByID(c.Request.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			respondError(c, h.Log, err)
		}
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if user.Role == models.RolePharmacist {
		if req.Specialization != nil {
			user.Specialization = *req.Specialization
		}
		if req.YearsOfExperience != nil {
			user.YearsOfExperience = *req.YearsOfExperience
		}
		if req.Available != nil {
			user.Available = *req.Available
		}
	}

	if err := h.Users.Update(c.Request.Context(), user); err != nil {
		respondError(c, h.Log, err)
		return
	}

	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
