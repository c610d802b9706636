package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/shuttleup/internal/authkit"
	"github.com/tyemirov/shuttleup/internal/authstate"
	"github.com/tyemirov/shuttleup/internal/gate"
	"github.com/tyemirov/shuttleup/internal/league"
	"github.com/tyemirov/shuttleup/internal/profile"
	"github.com/tyemirov/shuttleup/internal/sessionbridge"
	"github.com/tyemirov/shuttleup/internal/umpire"
	"go.uber.org/zap"
)

// umpireRequestTimeout bounds each session-bridge request.
const umpireRequestTimeout = 15 * time.Second

func newUmpireCommand() *cobra.Command {
	umpireCmd := &cobra.Command{
		Use:   "umpire",
		Short: "Sign in against a running server and score matches from the terminal",
		RunE:  runUmpire,
	}
	umpireCmd.Flags().String("server_url", "http://localhost:8080", "Base URL of the shuttleup server")
	umpireCmd.Flags().String("umpire_credential", "", "Identity-provider ID token used to sign in")
	_ = viper.BindPFlag("server_url", umpireCmd.Flags().Lookup("server_url"))
	_ = viper.BindPFlag("umpire_credential", umpireCmd.Flags().Lookup("umpire_credential"))
	return umpireCmd
}

// umpireSession is everything one umpire run needs besides its context.
type umpireSession struct {
	Bridge      *sessionbridge.Client
	Provisioner authstate.Provisioner
	Credential  string
	Matches     []league.UmpireMatch
	Input       io.Reader
	Output      io.Writer
	Logger      *zap.Logger
}

func runUmpire(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	provisioner, closeProvisioner, provisionerErr := buildClientProvisioner(ctx, logger)
	if provisionerErr != nil {
		return provisionerErr
	}
	defer closeProvisioner()

	httpClient := resty.New().SetTimeout(umpireRequestTimeout)
	return runUmpireSession(ctx, umpireSession{
		Bridge:      sessionbridge.NewClient(httpClient, viper.GetString("server_url")),
		Provisioner: provisioner,
		Credential:  viper.GetString("umpire_credential"),
		Matches:     league.NewDirectory(nil).UmpireMatches(),
		Input:       command.InOrStdin(),
		Output:      command.OutOrStdout(),
		Logger:      logger,
	})
}

// buildClientProvisioner provisions directly against Firestore when that is the
// profile backend. Other backends are provisioned by the server at sign-in.
func buildClientProvisioner(ctx context.Context, logger *zap.Logger) (authstate.Provisioner, func(), error) {
	if viper.GetString("profile_backend") != profileBackendFirestore {
		return nil, func() {}, nil
	}
	account, accountErr := resolveServiceAccount(ctx, authkit.ServiceAccountSettings{
		File:        viper.GetString("service_account_file"),
		ProjectID:   viper.GetString("service_account_project_id"),
		ClientEmail: viper.GetString("service_account_client_email"),
		PrivateKey:  viper.GetString("service_account_private_key"),
	})
	if accountErr != nil {
		logger.Warn("client-side provisioning disabled", zap.String("code", "umpire.service_account_unavailable"), zap.Error(accountErr))
		return nil, func() {}, nil
	}
	projectID := viper.GetString("firebase_project_id")
	if projectID == "" {
		projectID = account.ProjectID
	}
	client, clientErr := firestore.NewClient(ctx, projectID, account.ClientOptions()...)
	if clientErr != nil {
		return nil, nil, fmt.Errorf("umpire.firestore_client: %w", clientErr)
	}
	provisioner := profile.NewProvisioner(profile.NewFirestoreStore(client, profile.DefaultCollection), logger)
	provision := authstate.ProvisionFunc(func(provisionCtx context.Context, identity authstate.Identity) error {
		_, err := provisioner.EnsureProfile(provisionCtx, profile.Seed{
			UserID:      identity.ID,
			DisplayName: identity.DisplayName,
			Email:       identity.Email,
			PhotoURL:    identity.PhotoURL,
		})
		return err
	})
	return provision, func() { _ = client.Close() }, nil
}

// runUmpireSession signs in, waits for the gate, runs the console and signs out.
func runUmpireSession(ctx context.Context, session umpireSession) error {
	logger := session.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	publisher := authstate.NewPublisher(authstate.Options{
		Bridge:      session.Bridge,
		Provisioner: session.Provisioner,
		Logger:      logger,
	})
	defer publisher.Close()

	provider := authstate.NewTokenIdentityProvider()
	if startErr := publisher.Start(provider); startErr != nil {
		return fmt.Errorf("umpire.start: %w", startErr)
	}

	if _, signInErr := provider.SignIn(session.Credential); signInErr != nil {
		if authstate.IsReportableSignInError(signInErr) {
			fmt.Fprintf(session.Output, "Sign-in failed: %v\n", signInErr)
		}
	}

	outcome, gateErr := gate.New(publisher).AwaitResolved(ctx)
	if gateErr != nil {
		return fmt.Errorf("umpire.gate: %w", gateErr)
	}
	if outcome.Action == gate.ActionRedirect {
		fmt.Fprintf(session.Output, "Sign in required (%s). Supply --umpire_credential.\n", outcome.RedirectTo)
		return nil
	}

	publisher.Wait()
	info, sessionErr := session.Bridge.Session(ctx)
	switch {
	case sessionErr == nil:
		fmt.Fprintf(session.Output, "Signed in as %s. Session valid until %s.\n", displayNameOrID(info.DisplayName, info.UserID), info.Expires.Format(time.RFC1123))
	case errors.Is(sessionErr, sessionbridge.ErrNoSession):
		identity := provider.CurrentIdentity()
		if identity == nil {
			identity = outcome.Identity
		}
		fmt.Fprintf(session.Output, "Signed in as %s without a server session.\n", displayNameOrID(identity.DisplayName, identity.ID))
	default:
		logger.Warn("session lookup failed", zap.String("code", "umpire.session_lookup"), zap.Error(sessionErr))
	}

	console := umpire.NewConsole(umpire.NewScreen(session.Matches, umpire.DefaultGameRule), session.Input, session.Output, logger)
	runErr := console.Run(ctx)

	provider.SignOut()
	publisher.Wait()
	fmt.Fprintf(session.Output, "Signed out.\n")
	return runErr
}

func displayNameOrID(displayName string, userID string) string {
	if displayName != "" {
		return displayName
	}
	return userID
}
