package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"lighthouse/internal/client"
	"lighthouse/internal/client/firebase"
	"lighthouse/internal/client/google"
	"lighthouse/internal/client/session"
	"lighthouse/pkg/callable"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	logger  *zap.SugaredLogger
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

var rootCmd = &cobra.Command{
	Use:           "lighthouse",
	Short:         "Sign in and read your latest Gmail messages",
	Long:          "Signs in through Firebase, grants the lighthouse server read access to Gmail and shows the latest messages it stored.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("debug") {
			level.SetLevel(zap.DebugLevel)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/lighthouse/config.yaml)")
	flags.Bool("debug", false, "Debug logging")
	flags.String("api_url", "http://localhost:8080/api", "Base URL of the lighthouse callable API")
	flags.String("firebase.api_key", "", "Firebase web API key")
	flags.String("firebase.auth_url", firebase.DefaultIdentityToolkitURL, "Identity Toolkit base URL")
	flags.String("firebase.token_url", firebase.DefaultSecureTokenURL, "Secure Token base URL")
	flags.String("google.client_id", "", "Google OAuth client ID")
	flags.String("google.client_secret", "", "Google OAuth client secret")
	flags.String("google.redirect_uri", "http://127.0.0.1:8085/oauth2/callback", "Loopback redirect URI registered for the Gmail grant")
	flags.String("keyring.dir", defaultConfigDir("keyring"), "Directory for the file keyring fallback")

	for _, key := range []string{
		"debug", "api_url",
		"firebase.api_key", "firebase.auth_url", "firebase.token_url",
		"google.client_id", "google.client_secret", "google.redirect_uri",
		"keyring.dir",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	rootCmd.AddCommand(signinCmd, statusCmd, emailsCmd, refreshCmd, deleteDataCmd, signoutCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(defaultConfigDir(""))
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("LIGHTHOUSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func initLogger() {
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.DisableStacktrace = true
	l, err := config.Build()
	if err != nil {
		l = zap.NewNop()
	}
	logger = l.Sugar()
}

func defaultConfigDir(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lighthouse", sub)
	}
	return filepath.Join(home, ".config", "lighthouse", sub)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, displayError(err))
		os.Exit(1)
	}
}

// displayError prefers the user-facing text carried by a failed step.
func displayError(err error) string {
	var se *client.StepError
	if errors.As(err, &se) {
		return se.Message
	}
	return client.FriendlyMessage(err, client.MsgSignInFailed)
}

// deps are the collaborators shared by every command
type deps struct {
	firebase *firebase.Client
	flow     *google.ConsentFlow
	backend  client.Backend
	store    client.SessionStore
}

func loadDeps() (*deps, error) {
	apiKey := viper.GetString("firebase.api_key")
	if apiKey == "" {
		return nil, errors.New("firebase.api_key is not configured")
	}
	ring, err := session.OpenKeyring(viper.GetString("keyring.dir"))
	if err != nil {
		return nil, err
	}
	return &deps{
		firebase: firebase.NewClient(apiKey,
			firebase.WithBaseURLs(viper.GetString("firebase.auth_url"), viper.GetString("firebase.token_url"))),
		flow: google.NewConsentFlow(viper.GetString("google.client_id"), viper.GetString("google.client_secret"),
			google.WithPrompt(os.Stderr, os.Stdin)),
		backend: client.NewCallableBackend(callable.NewClient(viper.GetString("api_url"), nil)),
		store:   session.NewKeyringStore(ring),
	}, nil
}

func (d *deps) orchestrator(provider client.IdentityProvider) *client.Orchestrator {
	return client.NewOrchestrator(provider, d.backend, d.store, logger,
		client.WithStateObserver(func(s client.State) {
			logger.Debugw("sign-in state", "state", s.String())
		}))
}

// googleProvider builds the Google provider. The ID-token verifier is only needed for an
// interactive Google sign-in.
func (d *deps) googleProvider(verifier google.IDTokenVerifier, opts ...google.ProviderOption) *google.Provider {
	return google.NewProvider(d.flow, d.firebase, verifier, viper.GetString("google.redirect_uri"), opts...)
}
