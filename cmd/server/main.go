package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/shuttleup/internal/authkit"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = os.Stderr.WriteString("config.dotenv: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "shuttleup",
		Short:   "League site with identity-provider sign-in, cookie sessions, profiles and umpire scoring",
		PreRunE: prepareAppConfig,
		RunE:    runServer,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("listen_addr", ":8080", "HTTP listen address")
	flags.String("environment", environmentDevelopment, "development or production; production marks cookies Secure")
	flags.String("cookie_domain", "", "Cookie domain; empty for host-only")
	flags.String("identity_provider", identityProviderFirebase, "firebase or google")
	flags.String("firebase_project_id", "", "Firebase project id (defaults to the service account's project)")
	flags.String("firebase_api_key", "", "Firebase web API key exposed to the browser")
	flags.String("firebase_auth_domain", "", "Firebase auth domain exposed to the browser")
	flags.String("firebase_storage_bucket", "", "Firebase storage bucket exposed to the browser")
	flags.String("firebase_messaging_sender_id", "", "Firebase messaging sender id exposed to the browser")
	flags.String("firebase_app_id", "", "Firebase app id exposed to the browser")
	flags.String("google_web_client_id", "", "Google Web OAuth Client ID")
	flags.String("service_account_file", "", "Path to a service-account JSON key")
	flags.String("service_account_project_id", "", "Service-account project id")
	flags.String("service_account_client_email", "", "Service-account client email")
	flags.String("service_account_private_key", "", "Service-account private key (\\n escapes allowed)")
	flags.String("session_signing_key", "", "HS256 secret for the session artifact")
	flags.Duration("session_ttl", authkit.DefaultSessionTTL, "Session artifact lifetime")
	flags.String("database_url", "", "Database URL (postgres:// or sqlite://); empty keeps sessions in memory")
	flags.String("profile_backend", profileBackendMemory, "memory, database or firestore")
	flags.String("avatar_bucket", "", "Cloud Storage bucket for avatars; empty keeps avatars in memory")
	flags.Bool("enable_cors", false, "Enable CORS for cross-origin clients (switches cookies to SameSite=None)")
	flags.StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	flags.Int("login_rate_per_minute", 30, "sessionLogin requests per minute per client IP; 0 disables limiting")
	flags.Duration("nonce_ttl", authkit.DefaultNonceTTL, "Nonce lifetime for sign-in exchanges")
	flags.Bool("require_nonce", false, "Reject sessionLogin requests without a nonce")

	for _, key := range []string{
		"listen_addr", "environment", "cookie_domain", "identity_provider",
		"firebase_project_id", "firebase_api_key", "firebase_auth_domain",
		"firebase_storage_bucket", "firebase_messaging_sender_id", "firebase_app_id",
		"google_web_client_id", "service_account_file", "service_account_project_id",
		"service_account_client_email", "service_account_private_key",
		"session_signing_key", "session_ttl", "database_url", "profile_backend",
		"avatar_bucket", "enable_cors", "cors_allowed_origins",
		"login_rate_per_minute", "nonce_ttl", "require_nonce",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	viper.SetEnvPrefix("SHUTTLEUP")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newUmpireCommand())
	return rootCmd
}
