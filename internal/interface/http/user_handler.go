package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/savorly/savorly-api/internal/application"
	"github.com/savorly/savorly-api/internal/interface/middleware"
	"github.com/savorly/savorly-api/pkg/helpers"
	"github.com/savorly/savorly-api/pkg/mailer"
	"github.com/savorly/savorly-api/pkg/response"
	"github.com/savorly/savorly-api/pkg/validation"
)

// UserHandler owns the account surface: signup, profile views, password
// change, avatar upload, and user search.
type UserHandler struct {
	Svc     *application.IdentityService
	Logger  *logrus.Logger
	Audit   *AuditLogger
	Pub     *helpers.RabbitPublisher
	AppName string
	Mail    bool
}

func NewUserHandler(svc *application.IdentityService, logger *logrus.Logger, audit *AuditLogger, pub *helpers.RabbitPublisher, appName string, mailEnabled bool) *UserHandler {
	return &UserHandler{Svc: svc, Logger: logger, Audit: audit, Pub: pub, AppName: appName, Mail: mailEnabled}
}

type signupRequest struct {
	UserName string `json:"user_name" binding:"required,alphanum,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

type changePasswordRequest struct {
	NewPassword1 string `json:"new_password1" binding:"required,pwd"`
	NewPassword2 string `json:"new_password2" binding:"required"`
}

// Signup POST /api/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.CreateUser(c.Request.Context(), application.CreateUserRequest{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, application.ErrUsernameTaken) {
			response.Error[any](c, http.StatusConflict, "choose a different user name please", nil)
			return
		}
		h.Logger.WithError(err).WithField("user_name", req.UserName).Error("signup failed")
		response.Error[any](c, http.StatusInternalServerError, "unable to create user", nil)
		return
	}

	h.Audit.Record(c, u.ID, u.Name, "signup", nil)
	h.enqueueMail(c, u.Email, "welcome", map[string]any{"Name": u.Name, "AppName": h.AppName})

	response.Success(c, http.StatusCreated, application.Project(u),
		fmt.Sprintf("user %s created successfully", u.Name), nil)
}

// Profile GET /api/profile — the authenticated principal's own profile.
func (h *UserHandler) Profile(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	view, err := h.Svc.ProfileByID(c.Request.Context(), uid)
	if err != nil {
		h.renderProfileError(c, err, fmt.Sprintf("user not found for id: %d", uid))
		return
	}
	response.Success(c, http.StatusOK, view, "profile", nil)
}

// GetByName GET /api/users?name=
func (h *UserHandler) GetByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		response.Error[any](c, http.StatusBadRequest, "name is required", nil)
		return
	}
	view, err := h.Svc.ProfileByName(c.Request.Context(), name)
	if err != nil {
		h.renderProfileError(c, err, "user not found for name: "+name)
		return
	}
	response.Success(c, http.StatusOK, view, "user", nil)
}

// GetByID GET /api/users/id/:userId
func (h *UserHandler) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	view, err := h.Svc.ProfileByID(c.Request.Context(), id)
	if err != nil {
		h.renderProfileError(c, err, fmt.Sprintf("user not found for id: %d", id))
		return
	}
	response.Success(c, http.StatusOK, view, "user", nil)
}

// ChangePassword POST /api/users/:userId/change-password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.ChangePassword(c.Request.Context(), id, application.ChangePasswordRequest{
		NewPassword1: req.NewPassword1,
		NewPassword2: req.NewPassword2,
	})
	if err != nil {
		switch {
		case errors.Is(err, application.ErrPasswordMismatch):
			response.Error[any](c, http.StatusBadRequest, "passwords do not match", nil)
		case errors.Is(err, application.ErrUserNotFound):
			response.Error[any](c, http.StatusNotFound, "invalid user provided", nil)
		default:
			h.Logger.WithError(err).WithField("user_id", id).Error("change password failed")
			// Re-show the previous projection alongside the error so the
			// caller still has something renderable.
			detail := any(nil)
			if prev, ferr := h.Svc.FindByID(c.Request.Context(), id); ferr == nil {
				detail = gin.H{"user": application.Project(prev)}
			}
			response.Error[any](c, http.StatusInternalServerError, "unable to change password", detail)
		}
		return
	}

	h.Audit.Record(c, u.ID, u.Name, "change_password", nil)
	h.enqueueMail(c, u.Email, "password_changed", map[string]any{"Name": u.Name, "AppName": h.AppName})

	response.Success(c, http.StatusOK, application.Project(u), "password changed successfully", nil)
}

// UploadAvatar POST /api/profile/avatar
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unable to read avatar", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		h.Logger.WithError(err).WithField("user_id", uid).Error("avatar upload failed")
		response.Error[any](c, http.StatusInternalServerError, "unable to upload avatar", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar updated", nil)
}

// Search GET /api/users/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("user search failed")
		response.Error[any](c, http.StatusInternalServerError, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "results", map[string]any{"count": len(hits)})
}

func (h *UserHandler) renderProfileError(c *gin.Context, err error, message string) {
	if errors.Is(err, application.ErrUserNotFound) {
		response.Error[any](c, http.StatusNotFound, message, nil)
		return
	}
	h.Logger.WithError(err).Warn("profile assembly failed")
	response.Error[any](c, http.StatusInternalServerError, message, nil)
}

func (h *UserHandler) enqueueMail(c *gin.Context, to, template string, data map[string]any) {
	if !h.Mail || h.Pub == nil {
		return
	}
	job := mailer.EmailJob{To: to, Template: template, Data: data}
	if err := h.Pub.PublishJSON(c.Request.Context(), job); err != nil {
		h.Logger.WithError(err).WithField("template", template).Warn("enqueue email failed")
	}
}
