package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/savorly/savorly-api/internal/container"
	handlers "github.com/savorly/savorly-api/internal/interface/http"
	"github.com/savorly/savorly-api/internal/interface/middleware"
	"github.com/savorly/savorly-api/pkg/helpers"
)

// UserModule wires the account routes.
// Public: POST /api/signup
// Protected: GET /api/profile, GET /api/users, GET /api/users/id/:userId,
// POST /api/users/:userId/change-password, POST /api/profile/avatar,
// GET /api/users/search
type UserModule struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.UserHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	signupLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), middleware.AllowPrivateIP())

	rg.POST("/signup", signupLimiter, m.Handler.Signup)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Handler.Profile)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.GET("/users", m.Handler.GetByName)
		auth.GET("/users/id/:userId", m.Handler.GetByID)
		auth.POST("/users/:userId/change-password", m.Handler.ChangePassword)
		auth.GET("/users/search", m.Handler.Search)
	}
}
