package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-lms-registration/config"
	"github.com/oksasatya/go-lms-registration/internal/container"
	pginfra "github.com/oksasatya/go-lms-registration/internal/infrastructure/postgres"
	"github.com/oksasatya/go-lms-registration/internal/infrastructure/search"
	"github.com/oksasatya/go-lms-registration/internal/interface/middleware"
	"github.com/oksasatya/go-lms-registration/internal/router"
	"github.com/oksasatya/go-lms-registration/pkg/activation"
	"github.com/oksasatya/go-lms-registration/pkg/helpers"
	"github.com/oksasatya/go-lms-registration/pkg/mailer"
	"github.com/oksasatya/go-lms-registration/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	// Activation tokens cannot be issued without a secret.
	issuer, err := activation.NewIssuer(activation.Config{
		Secret:        cfg.ActivationSecret,
		EncryptionKey: cfg.ActivationEncryptionKey,
		TTL:           cfg.ActivationTTL,
	})
	if err != nil {
		log.Fatalf("activation issuer: %v", err)
	}

	// Initialize Postgres pool
	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptionsFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// Redis
	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := helpers.PingRedis(ctx, rdb); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	// GCS is only needed when avatars are enabled
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			log.Fatalf("failed to init GCS client: %v", err)
		}
		defer func() { _ = gcsClient.Close() }()
		container.SetGCS(gcsClient)
	}

	// Elasticsearch (optional)
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err != nil {
			logger.WithError(err).Warn("elasticsearch disabled")
		} else {
			container.SetES(es)
			if created, err := search.NewUserIndexer(es, cfg.ESUsersIndex).EnsureIndex(ctx); err != nil {
				helpers.LogWarn(logger, "users index not ready", err, logrus.Fields{"index": cfg.ESUsersIndex})
			} else if created {
				helpers.LogInfo(logger, "users index created", logrus.Fields{"index": cfg.ESUsersIndex})
			}
		}
	}

	sender, closeSender := newMailSender(cfg, logger)
	defer closeSender()

	// Provide infra singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetIssuer(issuer)
	container.SetHasher(helpers.NewBcryptHasher(cfg.BcryptCost))
	container.SetMailSender(sender)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Infof("server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// newMailSender picks the transport for activation mail.
func newMailSender(cfg *config.Config, logger *logrus.Logger) (mailer.Sender, func()) {
	if !cfg.MailSendEnabled {
		logger.Warn("MAIL_SEND_ENABLED=false; activation mails are only logged")
		return mailer.Noop{Logger: logger}, func() {}
	}
	switch cfg.MailTransport {
	case config.MailTransportQueue:
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		container.SetRabbitPub(pub)
		return mailer.NewQueue(pub), pub.Close
	case config.MailTransportMailgun:
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
			log.Fatal("Mailgun not configured")
		}
		mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
		mg.Timeout = cfg.MailTimeout
		mg.APIBase = cfg.MailgunAPIBase
		return mg, func() {}
	default:
		log.Fatalf("unknown MAIL_TRANSPORT %q", cfg.MailTransport)
		return nil, nil
	}
}
