package router

import (
	"github.com/savorly/savorly-api/internal/application"
	"github.com/savorly/savorly-api/internal/container"
	pginfra "github.com/savorly/savorly-api/internal/infrastructure/postgres"
	"github.com/savorly/savorly-api/internal/infrastructure/redisdir"
	handlers "github.com/savorly/savorly-api/internal/interface/http"
	"github.com/savorly/savorly-api/internal/router/modules"
)

// InitModules constructs the dependency graph from the container
// singletons and registers every feature module. Called once at startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()

	users := pginfra.NewUserRepository(container.GetPGPool())
	recipes := pginfra.NewRecipeCatalog(container.GetPGPool())
	dir := redisdir.New(container.GetRedis())

	svc := application.NewIdentityService(
		users,
		dir,
		recipes,
		container.GetLogger(),
		container.GetGCS(),
		cfg.GCSBucket,
		container.GetES(),
		cfg.ESUsersIndex,
	)

	audit := handlers.NewAuditLogger(container.GetPGPool(), container.GetLogger())

	userHandler := handlers.NewUserHandler(
		svc,
		container.GetLogger(),
		audit,
		container.GetRabbitPub(),
		cfg.AppName,
		cfg.MailSendEnabled,
	)
	authHandler := handlers.NewAuthHandler(
		svc,
		container.GetJWT(),
		container.GetRedis(),
		container.GetLogger(),
		cfg.CookieDomain,
		cfg.CookieSecure,
		audit,
	)

	r.Add(modules.NewUserModule(userHandler, container.GetJWT()))
	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
}
