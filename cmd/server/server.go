package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tyemirov/shuttleup/internal/authkit"
	"github.com/tyemirov/shuttleup/internal/authkitpg"
	"github.com/tyemirov/shuttleup/internal/database"
	"github.com/tyemirov/shuttleup/internal/league"
	"github.com/tyemirov/shuttleup/internal/profile"
	"github.com/tyemirov/shuttleup/internal/routeguard"
	"github.com/tyemirov/shuttleup/internal/web"
	"github.com/tyemirov/shuttleup/pkg/sessionvalidator"
	webassets "github.com/tyemirov/shuttleup/web"
	"go.uber.org/zap"
)

const (
	configCodeMissingProjectID = "config.missing_project_id"
	memoryAvatarBaseURL        = "/avatars"
	postgresDriver             = "postgres"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var resolveServiceAccount = authkit.ResolveServiceAccount

var buildCredentialVerifier = func(ctx context.Context, configuration AppConfig, account *authkit.ServiceAccount, clock authkit.Clock) (authkit.CredentialVerifier, error) {
	switch configuration.IdentityProvider {
	case identityProviderGoogle:
		if configuration.GoogleWebClientID == "" {
			return nil, fmt.Errorf("google_web_client_id is empty: %w", authkit.ErrServerMisconfigured)
		}
		return authkit.NewGoogleVerifier(ctx, configuration.GoogleWebClientID, account.ClientOptions()...)
	default:
		projectID := configuration.projectID(account)
		if projectID == "" {
			return nil, fmt.Errorf("firebase project id is empty: %w", authkit.ErrServerMisconfigured)
		}
		return authkit.NewFirebaseVerifier(projectID, authkit.NewAutoRefreshKeySet(ctx), clock)
	}
}

type contextKey string

const appConfigContextKey contextKey = "appConfig"

func prepareAppConfig(command *cobra.Command, arguments []string) error {
	appConfig, loadErr := LoadAppConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, appConfigContextKey, appConfig))
	return nil
}

func appConfigFromCommand(command *cobra.Command) (AppConfig, error) {
	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(appConfigContextKey)
	}
	appConfig, ok := contextValue.(AppConfig)
	if !ok {
		return AppConfig{}, configError(configCodeUninitializedAppConfig, "application configuration not prepared; PreRunE must execute before RunE")
	}
	return appConfig, nil
}

// application is the assembled HTTP surface and the resources it holds.
type application struct {
	router  *gin.Engine
	closers []func()
}

func (app *application) Close() {
	for index := len(app.closers) - 1; index >= 0; index-- {
		app.closers[index]()
	}
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	appConfig, configErr := appConfigFromCommand(command)
	if configErr != nil {
		return configErr
	}

	lifetime, stop := context.WithCancel(command.Context())
	defer stop()

	app, buildErr := buildApplication(lifetime, appConfig, logger)
	if buildErr != nil {
		return buildErr
	}
	defer app.Close()

	server := &http.Server{
		Addr:              appConfig.ListenAddr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-stopSignals:
		case <-lifetime.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", appConfig.ListenAddr), zap.String("environment", appConfig.Environment))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// buildApplication wires stores, verifiers and routes. Missing credentials
// disable session establishment instead of failing start-up.
func buildApplication(ctx context.Context, appConfig AppConfig, logger *zap.Logger) (*application, error) {
	app := &application{}
	clock := authkit.NewSystemClock()

	var handle *database.Handle
	if appConfig.DatabaseURL != "" {
		openedHandle, openErr := database.Open(ctx, appConfig.DatabaseURL)
		if openErr != nil {
			return nil, openErr
		}
		handle = openedHandle
		if sqlDB, sqlErr := handle.DB.DB(); sqlErr == nil {
			app.closers = append(app.closers, func() { _ = sqlDB.Close() })
		}
		logger.Info("database connected", zap.String("driver", handle.Driver))
	}

	var sessions authkit.SessionStore
	switch {
	case handle != nil && handle.Driver == postgresDriver:
		pool, poolErr := authkitpg.BuildPool(ctx, appConfig.DatabaseURL)
		if poolErr != nil {
			app.Close()
			return nil, poolErr
		}
		app.closers = append(app.closers, pool.Close)
		if schemaErr := authkitpg.EnsureSchema(ctx, pool); schemaErr != nil {
			app.Close()
			return nil, schemaErr
		}
		sessions = authkitpg.NewPostgresSessionStore(pool, clock)
		logger.Info("using pgx session store")
	case handle != nil:
		databaseSessions, storeErr := authkit.NewDatabaseSessionStore(ctx, handle, clock)
		if storeErr != nil {
			app.Close()
			return nil, storeErr
		}
		sessions = databaseSessions
		logger.Info("using persistent session store", zap.String("driver", databaseSessions.Driver()))
	default:
		sessions = authkit.NewMemorySessionStore(clock)
		logger.Info("using in-memory session store")
	}

	var validator *sessionvalidator.Validator
	if len(appConfig.Session.SessionSigningKey) == 0 {
		logger.Warn("session signing key missing; session establishment disabled",
			zap.String("code", "config.missing_session_signing_key"),
		)
	} else {
		builtValidator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
			SigningKey:  appConfig.Session.SessionSigningKey,
			Issuer:      appConfig.Session.SessionIssuer,
			CookieName:  appConfig.Session.SessionCookieName,
			Clock:       clock,
			Revocations: sessions,
		})
		if validatorErr != nil {
			app.Close()
			return nil, validatorErr
		}
		validator = builtValidator
	}

	account, accountErr := resolveServiceAccount(ctx, appConfig.ServiceAccount)
	if accountErr != nil {
		logger.Warn("service account unavailable",
			zap.String("code", "config.service_account_unavailable"),
			zap.Error(accountErr),
		)
	} else {
		logger.Info("service account resolved",
			zap.String("source", string(account.Source)),
			zap.String("project_id", account.ProjectID),
		)
	}

	var verifier authkit.CredentialVerifier
	if accountErr != nil {
		logger.Warn("service account missing; session establishment disabled",
			zap.String("code", "config.verifier_unavailable"),
			zap.String("identity_provider", appConfig.IdentityProvider),
		)
	} else if builtVerifier, verifierErr := buildCredentialVerifier(ctx, appConfig, account, clock); verifierErr != nil {
		logger.Warn("credential verifier unavailable; session establishment disabled",
			zap.String("code", "config.verifier_unavailable"),
			zap.String("identity_provider", appConfig.IdentityProvider),
			zap.Error(verifierErr),
		)
	} else {
		verifier = builtVerifier
	}

	registry := prometheus.NewRegistry()
	metrics := authkit.NewPrometheusMetrics(registry)

	profileStore, storeErr := buildProfileStore(ctx, appConfig, account, handle, app)
	if storeErr != nil {
		app.Close()
		return nil, storeErr
	}
	avatars, memoryAvatars, avatarErr := buildAvatarStorage(ctx, appConfig, account, app)
	if avatarErr != nil {
		app.Close()
		return nil, avatarErr
	}
	profiles := profile.NewService(profileStore, avatars, logger)
	provisioner := profile.NewProvisioner(profileStore, logger)
	directory := league.NewDirectory(profiles)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))
	router.Use(web.SecurityHeaders())

	if appConfig.EnableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, appConfig.CORSAllowedOrigins)
		if corsErr != nil {
			app.Close()
			return nil, corsErr
		}
		router.Use(corsMiddleware)
	}
	router.Use(routeguard.Middleware(routeguard.VerifyingProbe{Validator: validator}, logger))

	router.GET("/metrics", gin.WrapH(authkit.MetricsHandler(registry)))

	var nonces authkit.NonceStore
	if appConfig.Session.RequireNonce || appConfig.IdentityProvider == identityProviderGoogle {
		nonces = authkit.NewMemoryNonceStore(appConfig.NonceTTL, clock)
	}

	authkit.MountSessionRoutes(router, authkit.RouteDependencies{
		Config:    appConfig.Session,
		Verifier:  verifier,
		Sessions:  sessions,
		Nonces:    nonces,
		Validator: validator,
		LoginLimiter: authkit.NewLoginRateLimiter(authkit.LoginRateLimiterConfig{
			RequestsPerMinute: appConfig.LoginRatePerMinute,
		}, clock, logger, metrics),
		Metrics: metrics,
		Provision: func(provisionCtx context.Context, identity authkit.VerifiedIdentity) error {
			_, err := provisioner.EnsureProfile(provisionCtx, profile.Seed{
				UserID:      identity.UserID,
				DisplayName: identity.DisplayName,
				Email:       identity.Email,
				PhotoURL:    identity.PhotoURL,
			})
			return err
		},
		Clock:  clock,
		Logger: logger,
	})

	web.MountAPI(router, web.APIDependencies{
		Profiles:  profiles,
		League:    directory,
		Validator: validator,
		Logger:    logger,
	})
	web.MountPages(router, webassets.FS, web.ClientConfig{
		IdentityProvider:  appConfig.IdentityProvider,
		FirebaseAPIKey:    appConfig.Firebase.APIKey,
		AuthDomain:        appConfig.Firebase.AuthDomain,
		ProjectID:         appConfig.projectID(account),
		StorageBucket:     appConfig.Firebase.StorageBucket,
		MessagingSenderID: appConfig.Firebase.MessagingSenderID,
		AppID:             appConfig.Firebase.AppID,
		GoogleClientID:    appConfig.GoogleWebClientID,
		NonceRequired:     appConfig.Session.RequireNonce,
	})
	if memoryAvatars != nil {
		web.ServeMemoryAvatars(router, memoryAvatars)
	}

	app.router = router
	return app, nil
}

func buildProfileStore(ctx context.Context, appConfig AppConfig, account *authkit.ServiceAccount, handle *database.Handle, app *application) (profile.Store, error) {
	switch appConfig.ProfileBackend {
	case profileBackendDatabase:
		return profile.NewDatabaseStore(ctx, handle)
	case profileBackendFirestore:
		projectID := appConfig.projectID(account)
		if projectID == "" {
			return nil, configError(configCodeMissingProjectID, "a project id is required for the firestore profile backend")
		}
		client, clientErr := firestore.NewClient(ctx, projectID, account.ClientOptions()...)
		if clientErr != nil {
			return nil, fmt.Errorf("profile.firestore_client: %w", clientErr)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		return profile.NewFirestoreStore(client, profile.DefaultCollection), nil
	default:
		return profile.NewMemoryStore(), nil
	}
}

// buildAvatarStorage returns the memory storage separately so its objects can be served.
func buildAvatarStorage(ctx context.Context, appConfig AppConfig, account *authkit.ServiceAccount, app *application) (profile.AvatarStorage, *profile.MemoryAvatarStorage, error) {
	if appConfig.AvatarBucket == "" {
		memoryAvatars := profile.NewMemoryAvatarStorage(memoryAvatarBaseURL)
		return memoryAvatars, memoryAvatars, nil
	}
	client, clientErr := storage.NewClient(ctx, account.ClientOptions()...)
	if clientErr != nil {
		return nil, nil, fmt.Errorf("profile.storage_client: %w", clientErr)
	}
	app.closers = append(app.closers, func() { _ = client.Close() })
	return profile.NewGCSAvatarStorage(client, appConfig.AvatarBucket), nil, nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
