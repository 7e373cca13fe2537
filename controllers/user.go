package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"plantify/apperr"
	"plantify/logger"
	"plantify/media"
	"plantify/middleware"
	"plantify/models"
	"plantify/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UserDirectory is the account store used by the user handlers
type UserDirectory interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
	UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) (*models.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expire time.Time) error
	ResetPassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UserSettings carries the deployment knobs the user handlers need
type UserSettings struct {
	CookieSecure  bool
	ResetTokenTTL time.Duration
	TempDir       string
	// ExposeResetURL also returns the reset link in the response body
	ExposeResetURL bool
}

// UserController handles user-related requests
type UserController struct {
	users     UserDirectory
	tokens    *utils.TokenService
	blacklist utils.TokenBlacklist
	email     *utils.EmailService
	uploader  media.Uploader
	validate  *utils.Validator
	settings  UserSettings
}

// NewUserController creates a new UserController
func NewUserController(users UserDirectory, tokens *utils.TokenService, blacklist utils.TokenBlacklist,
	email *utils.EmailService, uploader media.Uploader, validate *utils.Validator, settings UserSettings) *UserController {
	if settings.ResetTokenTTL <= 0 {
		settings.ResetTokenTTL = 10 * time.Minute
	}
	return &UserController{
		users:     users,
		tokens:    tokens,
		blacklist: blacklist,
		email:     email,
		uploader:  uploader,
		validate:  validate,
		settings:  settings,
	}
}

type registerRequest struct {
	Name     string      `json:"name" validate:"required,min=2,max=50"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=buyer seller"`
}

type accountSummary struct {
	ID             primitive.ObjectID `json:"id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	Role           models.Role        `json:"role"`
	ProfileImageID string             `json:"profileImageId,omitempty"`
}

func summarize(u *models.User) accountSummary {
	return accountSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, ProfileImageID: u.ProfileImageID}
}

// Register handles user registration. Admin accounts cannot self-register.
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	req.Role = models.Role(strings.ToLower(string(req.Role)))
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	user := models.NewUser(req.Name, req.Email, hash, req.Role)
	if err := uc.users.Create(r.Context(), user); err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			err = apperr.Conflict("An account with this email already exists. Please login.")
		}
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, "User registered successfully.", utils.Envelope{"user": summarize(user)})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login checks credentials, sets the httpOnly token cookie and returns the token
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user, err := uc.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = apperr.Validation("Email not registered. Please sign up first.")
		}
		utils.WriteError(w, r, err)
		return
	}
	if !utils.CheckPassword(user.Password, req.Password) {
		utils.WriteError(w, r, apperr.Validation("Invalid email or password."))
		return
	}

	token, err := uc.tokens.GenerateJWT(user.ID.Hex(), string(user.Role))
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   uc.settings.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(uc.tokens.Expiration().Seconds()),
	})

	logger.FromContext(r.Context()).Info("user logged in", zap.String("user_id", user.ID.Hex()))
	utils.WriteSuccess(w, http.StatusOK, "User logged in successfully.", utils.Envelope{
		"user":  summarize(user),
		"token": token,
	})
}

// Logout revokes the presented token and clears the cookie
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.CurrentClaims(r.Context()); ok && uc.blacklist != nil {
		if err := uc.blacklist.Revoke(r.Context(), claims.ID, claims.Remaining()); err != nil {
			utils.WriteError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   uc.settings.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	utils.WriteSuccess(w, http.StatusOK, "Logged out successfully.", nil)
}

// GetProfile returns the caller's profile with display defaults
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"user": models.NewProfileView(user)})
}

// Pointer fields distinguish "absent" from "set to empty"
type profileUpdate struct {
	Name         *string              `json:"name" validate:"omitempty,min=2,max=50"`
	Phone        *string              `json:"phone" validate:"omitempty,phone_in"`
	Address      *string              `json:"address" validate:"omitempty,max=200"`
	City         *string              `json:"city" validate:"omitempty,max=100"`
	State        *string              `json:"state" validate:"omitempty,max=100"`
	PostalCode   *string              `json:"postalCode" validate:"omitempty,postal_code"`
	ShopName     *string              `json:"shopName" validate:"omitempty,max=100"`
	BusinessType *models.BusinessType `json:"businessType" validate:"omitempty,oneof=individual partnership company other"`
	GSTNumber    *string              `json:"gstNumber" validate:"omitempty,gstin"`
}

func (p profileUpdate) apply(u *models.User) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&u.Name, p.Name)
	set(&u.Phone, p.Phone)
	set(&u.Address, p.Address)
	set(&u.City, p.City)
	set(&u.State, p.State)
	set(&u.PostalCode, p.PostalCode)
	set(&u.ShopName, p.ShopName)
	set(&u.GSTNumber, p.GSTNumber)
	if p.BusinessType != nil {
		u.BusinessType = *p.BusinessType
	}
}

// UpdateProfile applies the provided fields and recomputes profile completeness
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	var req profileUpdate
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user := *current
	req.apply(&user)
	user.IsProfileComplete = user.ComputeProfileComplete()
	if err := uc.users.Update(r.Context(), &user); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Profile updated successfully. Profile completion status updated.",
		utils.Envelope{"user": models.NewProfileView(&user)})
}

// UploadProfileImage stores the multipart field profileImage and records its URL
func (uc *UserController) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	current, err := requireUser(r)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	path, err := media.SaveImage(w, r, "profileImage", uc.settings.TempDir)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if path == "" {
		utils.WriteError(w, r, apperr.Validation("No file uploaded"))
		return
	}

	asset, err := uc.uploader.Upload(r.Context(), path, "profileImages")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user := *current
	previousID := user.ProfileImageID
	user.ProfileImage = asset.URL
	user.ProfileImageID = asset.ID
	if err := uc.users.Update(r.Context(), &user); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if previousID != "" {
		if err := uc.uploader.Delete(r.Context(), previousID); err != nil {
			logger.FromContext(r.Context()).Warn("failed to delete old profile image",
				zap.String("id", previousID), zap.Error(err))
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"user": models.NewProfileView(&user)})
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword issues a reset token and mails the reset link
func (uc *UserController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user, err := uc.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = apperr.NotFound("User not found with this email.")
		}
		utils.WriteError(w, r, err)
		return
	}

	token, hash, err := utils.NewResetToken()
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.users.SetResetToken(r.Context(), user.ID, hash, time.Now().Add(uc.settings.ResetTokenTTL)); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	resetURL := fmt.Sprintf("%s://%s/api/v1/users/reset-password/%s", scheme(r), r.Host, token)
	if uc.email != nil {
		if err := uc.email.SendPasswordResetEmail(user.Email, resetURL); err != nil {
			logger.FromContext(r.Context()).Error("failed to send reset email", zap.Error(err))
			utils.WriteError(w, r, apperr.Wrap(apperr.KindUpstream, "Could not send the reset email.", err))
			return
		}
	}

	fields := utils.Envelope{}
	if uc.settings.ExposeResetURL {
		fields["resetUrl"] = resetURL
	}
	utils.WriteSuccess(w, http.StatusOK, "Password reset token generated successfully.", fields)
}

func scheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetPassword consumes a reset token and revokes every session issued before it
func (uc *UserController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if req.Password != req.ConfirmPassword {
		utils.WriteError(w, r, apperr.Validation("Passwords do not match."))
		return
	}

	user, err := uc.users.FindByResetToken(r.Context(), utils.HashResetToken(mux.Vars(r)["token"]), time.Now())
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			err = apperr.Validation("Invalid or expired reset token.")
		}
		utils.WriteError(w, r, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.users.ResetPassword(r.Context(), user.ID, hash); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if uc.blacklist != nil {
		if err := uc.blacklist.RevokeUser(r.Context(), user.ID.Hex(), uc.tokens.Expiration()); err != nil {
			logger.FromContext(r.Context()).Warn("failed to revoke sessions after reset", zap.Error(err))
		}
	}

	utils.WriteSuccess(w, http.StatusOK, "Password reset successfully.", nil)
}

// GetAllUsers lists every account (admin)
func (uc *UserController) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := uc.users.List(r.Context())
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	views := make([]models.ProfileView, 0, len(users))
	for i := range users {
		views = append(views, models.NewProfileView(&users[i]))
	}
	utils.WriteSuccess(w, http.StatusOK, "", utils.Envelope{"users": views})
}

// DeleteUser removes an account (admin)
func (uc *UserController) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if err := uc.users.Delete(r.Context(), id); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	if uc.blacklist != nil {
		if err := uc.blacklist.RevokeUser(r.Context(), id.Hex(), uc.tokens.Expiration()); err != nil {
			logger.FromContext(r.Context()).Warn("failed to revoke deleted user's sessions", zap.Error(err))
		}
	}
	utils.WriteSuccess(w, http.StatusOK, "User deleted successfully.", nil)
}

type roleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=buyer seller admin"`
}

// UpdateUserRole changes an account's role (admin)
func (uc *UserController) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "user")
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	var req roleRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, r, err)
		return
	}
	req.Role = models.Role(strings.ToLower(string(req.Role)))
	if err := uc.validate.Struct(req); err != nil {
		utils.WriteError(w, r, err)
		return
	}

	user, err := uc.users.UpdateRole(r.Context(), id, req.Role)
	if err != nil {
		utils.WriteError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "User role updated successfully.", utils.Envelope{"user": models.NewProfileView(user)})
}
