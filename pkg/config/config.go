package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	StoreBackendFirestore = "firestore"
	StoreBackendPostgres  = "postgres"
)

type Config struct {
	Port                string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	GoogleProjectID     string
	FirebaseCredentials string
	StoreBackend        string
	DatabaseURL         string
	PubSubTopic         string
	TokenEncryptionKey  string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		GoogleClientID:      getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:  getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:   getEnv("GOOGLE_REDIRECT_URI", "http://127.0.0.1:8085/oauth2/callback"),
		GoogleProjectID:     getEnv("GOOGLE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		StoreBackend:        getEnv("STORE_BACKEND", StoreBackendFirestore),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		PubSubTopic:         getEnv("PUBSUB_LOGIN_TOPIC", "lighthouse-logins"),
		TokenEncryptionKey:  getEnv("TOKEN_ENCRYPTION_KEY", ""),
	}
}

// HasGoogleCredentials reports whether the OAuth client used for code exchange and refresh is configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
