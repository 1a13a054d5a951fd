package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	googleauth "esign-backend/internal/auth"
	"esign-backend/internal/compose"
	"esign-backend/internal/documents"
	"esign-backend/internal/notify"
	"esign-backend/internal/publiclink"
	"esign-backend/internal/queue"
	"esign-backend/internal/services/health"
	sharedauth "esign-backend/internal/shared/auth"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/server"
	"esign-backend/internal/shared/storage/db"
	"esign-backend/internal/shared/storage/object"
	localstore "esign-backend/internal/shared/storage/object/local"
	s3store "esign-backend/internal/shared/storage/object/s3"
	"esign-backend/internal/shared/telemetry"
	"esign-backend/internal/signatures"
	"esign-backend/internal/users"
)

// App holds shared dependencies and the assembled router.
type App struct {
	Config            config.Config
	Router            *gin.Engine
	DB                *sql.DB
	Store             object.ObjectStore
	Queue             queue.Client
	Notifier          notify.Notifier
	Mailer            notify.Mailer
	DocumentsRepo     documents.Repo
	SignaturesRepo    signatures.Repo
	UsersRepo         users.Repo
	DocumentsService  *documents.Service
	SignaturesService *signatures.Service
	PublicLinks       *publiclink.Service
	UsersService      *users.Service
	Health            *health.Service
	DocumentsHandler  *documents.Handler
	SignaturesHandler *signatures.Handler
	PublicLinkHandler *publiclink.Handler
	UsersHandler      *users.Handler
	GoogleAuth        *googleauth.GoogleService
	DevTokens         *googleauth.DevTokens
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
		Mailer: notify.LogMailer{},
	}
	if queueClient != nil {
		app.Notifier = notify.QueueNotifier{Client: queueClient}
	} else {
		app.Notifier = notify.LogNotifier{}
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		Health:           app.Health,
		DocumentHandler:  app.DocumentsHandler,
		SignatureHandler: app.SignaturesHandler,
		PublicLink:       app.PublicLinkHandler,
		UserHandler:      app.UsersHandler,
		GoogleAuth:       app.GoogleAuth,
		DevTokens:        app.DevTokens,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() || cfg.Env == "test" {
			telemetry.Info("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.DetectProfile())
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
}

func publicLinkSecret(cfg config.Config) (string, error) {
	if secret := strings.TrimSpace(cfg.PublicLinkSecret); secret != "" {
		return secret, nil
	}
	key, err := sharedauth.SecretKey()
	if err != nil {
		return "", fmt.Errorf("public link secret: %w", err)
	}
	return string(key), nil
}

func buildServices(app *App) error {
	var (
		docRepo  documents.Repo
		sigRepo  signatures.Repo
		userRepo users.Repo
	)
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		sigRepo = &signatures.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		sigRepo = signatures.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	docSvc := &documents.Service{
		Store:           app.Store,
		Repo:            docRepo,
		StorageProvider: app.Config.ObjectStoreType,
		MaxUploadBytes:  app.Config.MaxUploadBytes,
		Composer:        compose.New(),
	}
	sigSvc := &signatures.Service{
		Repo:      sigRepo,
		Documents: docSvc,
		Handlers:  []signatures.EventHandler{&signatures.RollupPolicy{Repo: sigRepo, Documents: docSvc}},
		Notifier:  app.Notifier,
	}
	// Deleting a document drops its requests first.
	docSvc.Dependents = sigSvc

	secret, err := publicLinkSecret(app.Config)
	if err != nil {
		return err
	}
	linkSvc := &publiclink.Service{
		Tokens:     publiclink.NewIssuer(secret),
		Signatures: sigSvc,
		Documents:  docSvc,
		Notifier:   app.Notifier,
		BaseURL:    app.Config.PublicSignURL,
	}

	userSvc := users.NewService(userRepo)

	app.DocumentsRepo = docRepo
	app.SignaturesRepo = sigRepo
	app.UsersRepo = userRepo
	app.DocumentsService = docSvc
	app.SignaturesService = sigSvc
	app.PublicLinks = linkSvc
	app.UsersService = userSvc
	app.Health = health.NewService(app.DB)
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.SignaturesHandler = signatures.NewHandler(sigSvc)
	app.PublicLinkHandler = publiclink.NewHandler(linkSvc)
	app.UsersHandler = users.NewHandler(userSvc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		userSvc,
	)
	app.DevTokens = &googleauth.DevTokens{Users: userSvc}

	return nil
}
