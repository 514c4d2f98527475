package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	api "lighthouse/cmd/api"
	authUsecase "lighthouse/internal/auth/usecase"
	emailRepo "lighthouse/internal/email/repository"
	emailUsecase "lighthouse/internal/email/usecase"
	"lighthouse/internal/notification"
	"lighthouse/pkg/config"
	"lighthouse/pkg/database"
	"lighthouse/pkg/firebase"
	"lighthouse/pkg/gmail"
	"lighthouse/pkg/utils/crypto"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Firebase backs caller verification and, by default, storage
	app, err := firebase.NewApp(ctx, cfg.FirebaseCredentials, cfg.GoogleProjectID)
	if err != nil {
		log.Fatal("Failed to initialize Firebase:", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firebase Auth:", err)
	}

	// Initialize repositories (dependency injection)
	var tokenRepo emailRepo.TokenRepository
	var snapshotRepo emailRepo.SnapshotRepository
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		db, err := database.NewPostgresConnection(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := emailRepo.AutoMigrate(db); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		tokenRepo = emailRepo.NewTokenRepository(db)
		snapshotRepo = emailRepo.NewSnapshotRepository(db)
	case config.StoreBackendFirestore:
		fs, err := app.Firestore(ctx)
		if err != nil {
			log.Fatal("Failed to initialize Firestore:", err)
		}
		defer fs.Close()
		tokenRepo = emailRepo.NewFirestoreTokenRepository(fs)
		snapshotRepo = emailRepo.NewFirestoreSnapshotRepository(fs)
	default:
		log.Fatalf("Unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	key, err := crypto.ParseKey(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatal("Invalid TOKEN_ENCRYPTION_KEY:", err)
	}
	if key == nil {
		log.Printf("[WARN] TOKEN_ENCRYPTION_KEY not set, OAuth tokens are stored unencrypted")
	}
	tokenRepo = emailRepo.NewEncryptedTokenRepository(tokenRepo, key)

	if !cfg.HasGoogleCredentials() {
		log.Printf("[WARN] GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set, only access-token grants can be processed")
	}
	gmailService := gmail.NewService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI)

	// Login events are only published when a project is configured
	var publisher notification.Publisher = notification.NewNoopPublisher()
	if cfg.GoogleProjectID != "" {
		svc, err := notification.NewService(ctx, cfg.GoogleProjectID, cfg.PubSubTopic, cfg.FirebaseCredentials)
		if err != nil {
			log.Printf("[ERROR] Failed to initialize notification service: %v", err)
		} else {
			publisher = svc
		}
	} else {
		log.Printf("[WARN] GoogleProjectID not configured, login events disabled")
	}
	defer publisher.Close()

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(authClient)
	emailUsecaseInstance := emailUsecase.NewEmailUsecase(tokenRepo, snapshotRepo, gmailService, publisher, cfg)

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, emailUsecaseInstance, cfg)

	if err := handler.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
