package firebase

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// App wraps the Firebase Admin app shared by ID-token verification and Firestore access
type App struct {
	app *firebase.App
}

// NewApp initialises Firebase using the provided service-account file. With no file,
// application default credentials are used; projectID may be empty when the credentials carry one.
func NewApp(ctx context.Context, credentialsFile, projectID string) (*App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	log.Println("[Firebase] App initialized successfully")
	return &App{app: app}, nil
}

// Auth returns the client used to verify caller ID tokens.
func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return client, nil
}

// Firestore returns a Firestore client for the app's project. Callers close it.
func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := a.app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}
	return client, nil
}
