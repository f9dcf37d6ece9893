package router

import (
	"github.com/oksasatya/go-lms-registration/internal/application"
	"github.com/oksasatya/go-lms-registration/internal/container"
	pginfra "github.com/oksasatya/go-lms-registration/internal/infrastructure/postgres"
	redisinfra "github.com/oksasatya/go-lms-registration/internal/infrastructure/redis"
	"github.com/oksasatya/go-lms-registration/internal/infrastructure/search"
	"github.com/oksasatya/go-lms-registration/internal/infrastructure/storage"
	handlers "github.com/oksasatya/go-lms-registration/internal/interface/http"
	"github.com/oksasatya/go-lms-registration/internal/interface/middleware"
	"github.com/oksasatya/go-lms-registration/internal/router/modules"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
	"github.com/oksasatya/go-lms-registration/pkg/mailer/templates"
)

type RegistrationModuleDeps struct {
	Service       *application.RegistrationService
	Handler       *handlers.RegistrationHandler
	AvatarHandler *handlers.AvatarHandler
}

func buildRegistrationDeps() RegistrationModuleDeps {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	repo := pginfra.NewUserRepository(container.GetPGPool(), container.GetHasher())
	avatars := storage.NewAvatarStore(container.GetGCS(), cfg.GCSBucket)

	deps := application.RegistrationDeps{
		Repo:        repo,
		Issuer:      container.GetIssuer(),
		Renderer:    templates.Renderer{},
		Mailer:      container.GetMailSender(),
		Indexer:     search.NewUserIndexer(container.GetES(), cfg.ESUsersIndex),
		Logger:      logger,
		Subject:     cfg.MailSubject,
		MailTimeout: cfg.MailTimeout,
		MaxAttempts: cfg.ActivationMaxAttempts,
		MailOptions: []templates.Option{templates.WithBranding(cfg)},
	}
	if rdb := container.GetRedis(); rdb != nil {
		deps.Ledger = redisinfra.NewTicketLedger(rdb)
	}
	if container.GetGCS() != nil {
		deps.Avatars = avatars
	}
	service := application.NewRegistrationService(deps)

	return RegistrationModuleDeps{
		Service:       service,
		Handler:       handlers.NewRegistrationHandler(service, logger),
		AvatarHandler: handlers.NewAvatarHandler(avatars, logger),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	deps := buildRegistrationDeps()
	cfg := container.GetConfig()

	reg := modules.NewRegistrationModule(deps.Handler, deps.AvatarHandler, container.GetRedis())
	allow, err := middleware.AllowCIDRs(cfg.RateLimitCIDRs())
	if err != nil {
		helpers.LogError(container.GetLogger(), "ignoring rate limit allowlist", err, nil)
	}
	reg.Allow = allow
	r.Add(reg)

	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis()))
	}
}
