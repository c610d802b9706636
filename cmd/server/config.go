package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tyemirov/shuttleup/internal/authkit"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
)

const (
	sessionIssuer = "shuttleup"

	environmentDevelopment = "development"
	environmentProduction  = "production"

	identityProviderFirebase = "firebase"
	identityProviderGoogle   = "google"

	profileBackendMemory    = "memory"
	profileBackendDatabase  = "database"
	profileBackendFirestore = "firestore"

	configCodeInvalidEnvironment      = "config.invalid_environment"
	configCodeInvalidIdentityProvider = "config.invalid_identity_provider"
	configCodeInvalidProfileBackend   = "config.invalid_profile_backend"
	configCodeInvalidSessionTTL       = "config.invalid_session_ttl"
	configCodeInvalidNonceTTL         = "config.invalid_nonce_ttl"
	configCodeMissingDatabaseURL      = "config.missing_database_url"
	configCodeMissingCORSOrigins      = "config.missing_cors_allowed_origins"
	configCodeUninitializedAppConfig  = "config.uninitialized_app_config"
)

// AppConfig is the validated process configuration.
type AppConfig struct {
	ListenAddr         string
	Environment        string
	IdentityProvider   string
	Firebase           FirebaseSettings
	GoogleWebClientID  string
	ServiceAccount     authkit.ServiceAccountSettings
	Session            authkit.ServerConfig
	DatabaseURL        string
	ProfileBackend     string
	AvatarBucket       string
	EnableCORS         bool
	CORSAllowedOrigins []string
	LoginRatePerMinute int
	NonceTTL           time.Duration
}

// FirebaseSettings are the public web-app settings handed to the browser.
type FirebaseSettings struct {
	ProjectID         string
	APIKey            string
	AuthDomain        string
	StorageBucket     string
	MessagingSenderID string
	AppID             string
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadAppConfig reads and validates viper settings. Missing credentials are not
// errors: they leave session establishment disabled.
func LoadAppConfig() (AppConfig, error) {
	environment := strings.ToLower(strings.TrimSpace(viper.GetString("environment")))
	if environment == "" {
		environment = environmentDevelopment
	}
	if environment != environmentDevelopment && environment != environmentProduction {
		return AppConfig{}, configError(configCodeInvalidEnvironment, "environment must be development or production")
	}

	identityProvider := strings.ToLower(strings.TrimSpace(viper.GetString("identity_provider")))
	if identityProvider == "" {
		identityProvider = identityProviderFirebase
	}
	if identityProvider != identityProviderFirebase && identityProvider != identityProviderGoogle {
		return AppConfig{}, configError(configCodeInvalidIdentityProvider, "identity_provider must be firebase or google")
	}

	profileBackend := strings.ToLower(strings.TrimSpace(viper.GetString("profile_backend")))
	if profileBackend == "" {
		profileBackend = profileBackendMemory
	}
	switch profileBackend {
	case profileBackendMemory, profileBackendDatabase, profileBackendFirestore:
	default:
		return AppConfig{}, configError(configCodeInvalidProfileBackend, "profile_backend must be memory, database or firestore")
	}

	databaseURL := strings.TrimSpace(viper.GetString("database_url"))
	if profileBackend == profileBackendDatabase && databaseURL == "" {
		return AppConfig{}, configError(configCodeMissingDatabaseURL, "database_url must be provided for the database profile backend")
	}

	sessionTTL := authkit.DefaultSessionTTL
	if viper.IsSet("session_ttl") {
		sessionTTL = viper.GetDuration("session_ttl")
	}
	if sessionTTL <= 0 {
		return AppConfig{}, configError(configCodeInvalidSessionTTL, "session_ttl must be greater than zero")
	}

	nonceTTL := authkit.DefaultNonceTTL
	if viper.IsSet("nonce_ttl") {
		nonceTTL = viper.GetDuration("nonce_ttl")
	}
	if nonceTTL <= 0 {
		return AppConfig{}, configError(configCodeInvalidNonceTTL, "nonce_ttl must be greater than zero")
	}

	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")
	if enableCORS && len(corsAllowedOrigins) == 0 {
		return AppConfig{}, configError(configCodeMissingCORSOrigins, "cors_allowed_origins must be provided when enable_cors is true")
	}

	sameSite := http.SameSiteLaxMode
	if enableCORS {
		sameSite = http.SameSiteNoneMode
	}
	secureCookies := environment == environmentProduction || enableCORS

	listenAddr := viper.GetString("listen_addr")
	if strings.TrimSpace(listenAddr) == "" {
		listenAddr = ":8080"
	}

	return AppConfig{
		ListenAddr:       listenAddr,
		Environment:      environment,
		IdentityProvider: identityProvider,
		Firebase: FirebaseSettings{
			ProjectID:         viper.GetString("firebase_project_id"),
			APIKey:            viper.GetString("firebase_api_key"),
			AuthDomain:        viper.GetString("firebase_auth_domain"),
			StorageBucket:     viper.GetString("firebase_storage_bucket"),
			MessagingSenderID: viper.GetString("firebase_messaging_sender_id"),
			AppID:             viper.GetString("firebase_app_id"),
		},
		GoogleWebClientID: viper.GetString("google_web_client_id"),
		ServiceAccount: authkit.ServiceAccountSettings{
			File:        viper.GetString("service_account_file"),
			ProjectID:   viper.GetString("service_account_project_id"),
			ClientEmail: viper.GetString("service_account_client_email"),
			PrivateKey:  viper.GetString("service_account_private_key"),
		},
		Session: authkit.ServerConfig{
			SessionIssuer:     sessionIssuer,
			SessionSigningKey: []byte(viper.GetString("session_signing_key")),
			SessionCookieName: sessionvalidator.DefaultCookieName,
			SessionTTL:        sessionTTL,
			CookieDomain:      viper.GetString("cookie_domain"),
			SameSiteMode:      sameSite,
			SecureCookies:     secureCookies,
			RequireNonce:      viper.GetBool("require_nonce"),
		},
		DatabaseURL:        databaseURL,
		ProfileBackend:     profileBackend,
		AvatarBucket:       strings.TrimSpace(viper.GetString("avatar_bucket")),
		EnableCORS:         enableCORS,
		CORSAllowedOrigins: corsAllowedOrigins,
		LoginRatePerMinute: viper.GetInt("login_rate_per_minute"),
		NonceTTL:           nonceTTL,
	}, nil
}

// projectID prefers the configured Firebase project over the credential's own project.
func (configuration AppConfig) projectID(account *authkit.ServiceAccount) string {
	if configuration.Firebase.ProjectID != "" {
		return configuration.Firebase.ProjectID
	}
	if account != nil {
		return account.ProjectID
	}
	return configuration.ServiceAccount.ProjectID
}
