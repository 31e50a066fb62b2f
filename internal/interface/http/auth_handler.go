package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/savorly/savorly-api/internal/application"
	"github.com/savorly/savorly-api/internal/domain/entity"
	"github.com/savorly/savorly-api/internal/interface/middleware"
	"github.com/savorly/savorly-api/pkg/helpers"
	"github.com/savorly/savorly-api/pkg/response"
	"github.com/savorly/savorly-api/pkg/validation"
)

const sessionTTL = 24 * time.Hour

// AuthHandler owns the session lifecycle: login against the credential
// directory, token refresh, logout.
type AuthHandler struct {
	Svc     *application.IdentityService
	JWT     *helpers.JWTManager
	RDB     *redis.Client
	Logger  *logrus.Logger
	Cookies *helpers.Manager
	Audit   *AuditLogger
}

func NewAuthHandler(svc *application.IdentityService, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, cookieDomain string, cookieSecure bool, audit *AuditLogger) *AuthHandler {
	return &AuthHandler{
		Svc:     svc,
		JWT:     jwt,
		RDB:     rdb,
		Logger:  logger,
		Cookies: helpers.NewCookie(cookieDomain, cookieSecure),
		Audit:   audit,
	}
}

func sessionKey(userID int64) string {
	return "user:session:" + strconv.FormatInt(userID, 10)
}

type loginRequest struct {
	UserName string `json:"user_name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Authenticate(c.Request.Context(), req.UserName, req.Password)
	if err != nil {
		h.Audit.Record(c, 0, req.UserName, "login_failed", nil)
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	pair, err := h.issueSession(c, u)
	if err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID).Error("issue session failed")
		response.Error[any](c, http.StatusInternalServerError, "unable to start session", nil)
		return
	}

	h.Audit.Record(c, u.ID, u.Name, "login", nil)
	h.Cookies.SetPair(c, pair.access, pair.accessExp, pair.refresh, pair.refreshExp)
	response.Success(c, http.StatusOK, application.Project(u), "login successful",
		map[string]any{"access_expires_at": pair.accessExp, "refresh_expires_at": pair.refreshExp})
}

// Refresh POST /api/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	claims, err := h.JWT.ParseRefreshToken(refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	u, err := h.Svc.FindByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	// The token must still name the live session.
	data, err := h.RDB.HGetAll(c.Request.Context(), sessionKey(u.ID)).Result()
	if err != nil || len(data) == 0 || data["sid"] != claims.SessionID {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}

	pair, err := h.issueSession(c, u)
	if err != nil {
		h.Logger.WithError(err).WithField("user_id", u.ID).Error("rotate session failed")
		response.Error[any](c, http.StatusInternalServerError, "unable to refresh session", nil)
		return
	}
	h.Cookies.SetPair(c, pair.access, pair.accessExp, pair.refresh, pair.refreshExp)
	response.Success[any](c, http.StatusOK, gin.H{"refreshed": true}, "token refreshed",
		map[string]any{"access_expires_at": pair.accessExp, "refresh_expires_at": pair.refreshExp})
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if id, ok := middleware.UserID(c); ok {
		_ = h.RDB.Del(c.Request.Context(), sessionKey(id)).Err()
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

type tokenPair struct {
	access     string
	accessExp  time.Time
	refresh    string
	refreshExp time.Time
}

// issueSession rotates the session id, records the session hash in Redis,
// and mints a fresh token pair bound to it.
func (h *AuthHandler) issueSession(c *gin.Context, u *entity.User) (tokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := h.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, rexp, err := h.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		return tokenPair{}, err
	}

	key := sessionKey(u.ID)
	pipe := h.RDB.Pipeline()
	pipe.HSet(c.Request.Context(), key, map[string]any{
		"user_id":    u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"sid":        sid,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(c.Request.Context(), key, sessionTTL)
	if _, err := pipe.Exec(c.Request.Context()); err != nil {
		return tokenPair{}, err
	}

	return tokenPair{access: access, accessExp: aexp, refresh: refresh, refreshExp: rexp}, nil
}
