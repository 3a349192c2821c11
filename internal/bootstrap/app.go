package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"finparse-backend/internal/documents"
	"finparse-backend/internal/extract"
	"finparse-backend/internal/label"
	"finparse-backend/internal/pipeline"
	"finparse-backend/internal/queue"
	"finparse-backend/internal/shared/config"
	"finparse-backend/internal/shared/server"
	"finparse-backend/internal/shared/storage/db"
	"finparse-backend/internal/shared/storage/object"
	localstore "finparse-backend/internal/shared/storage/object/local"
	s3store "finparse-backend/internal/shared/storage/object/s3"
	"finparse-backend/internal/users"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            *queue.SQSClient
	DocumentsRepo    documents.Repo
	UsersRepo        users.Repo
	Pipeline         *pipeline.Runner
	DocumentsService *documents.Service
	UsersService     *users.Service
	DocumentsHandler *documents.Handler
	UsersHandler     *users.Handler
}

// Build prepares shared dependencies and wires the router.
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

	store, localDir, err := buildStore(ctx, cfg)
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
	}

	if sqlDB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	labelClient, err := buildLabelClient(cfg)
	if err != nil {
		return nil, err
	}

	app.Pipeline = &pipeline.Runner{
		Repo: app.DocumentsRepo,
		Extractor: extract.New(extract.Config{
			TesseractBin:  cfg.TesseractBin,
			TesseractLang: cfg.TesseractLang,
		}),
		Labeler: &label.Labeler{Client: labelClient},
	}
	if queueClient != nil {
		app.Pipeline.Queue = queueClient
	}

	app.DocumentsService = &documents.Service{
		Store:   store,
		Repo:    app.DocumentsRepo,
		Trigger: app.Pipeline,
	}
	app.UsersService = &users.Service{Repo: app.UsersRepo}
	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.UsersHandler = users.NewHandler(app.UsersService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		DocumentHandler: app.DocumentsHandler,
		UserHandler:     app.UsersHandler,
		LocalFilesDir:   localDir,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect database: %w", err)
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: run migrations: %w", err)
	}
	return sqlDB, nil
}

// buildStore returns the object store and, for the local backend, the
// directory the HTTP server should serve at /files/.
func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, string, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, "", fmt.Errorf("bootstrap: s3 store: %w", err)
		}
		return store, "", nil
	case "local", "":
		return localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL), cfg.LocalStoreDir, nil
	default:
		return nil, "", fmt.Errorf("bootstrap: unknown object store type %q", cfg.ObjectStoreType)
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (*queue.SQSClient, error) {
	if strings.TrimSpace(cfg.ParseQueueURL) == "" {
		return nil, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.ParseQueueURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: sqs queue: %w", err)
	}
	return client, nil
}

func buildLabelClient(cfg config.Config) (label.ChatClient, error) {
	if strings.TrimSpace(cfg.LabelerAPIKey) == "" {
		log.Printf("bootstrap: labeler API key not set; labeling degrades to empty structures")
		return nil, nil
	}
	client, err := label.NewOpenRouterClient(
		cfg.LabelerAPIKey,
		cfg.LabelerBaseURL,
		cfg.LabelerModel,
		cfg.LabelerReferer,
		cfg.LabelerAppName,
		cfg.LabelerTimeout,
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: labeler client: %w", err)
	}
	return client, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test", "":
		return true
	}
	return false
}
