package authkit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// CredentialSource names the form a service-account credential was resolved from.
type CredentialSource string

const (
	CredentialSourceFile        CredentialSource = "file"
	CredentialSourceEnvironment CredentialSource = "environment"
	CredentialSourceDefault     CredentialSource = "default"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccountSettings lists the three accepted credential forms.
type ServiceAccountSettings struct {
	File        string
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// ServiceAccount is a resolved server-side credential.
type ServiceAccount struct {
	ProjectID       string
	ClientEmail     string
	Source          CredentialSource
	credentialsJSON []byte
}

type serviceAccountDocument struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

var findDefaultCredentials = google.FindDefaultCredentials

// ResolveServiceAccount tries a local file, then discrete settings, then ambient default credentials.
// ErrServerMisconfigured is returned when none of them resolves.
func ResolveServiceAccount(ctx context.Context, settings ServiceAccountSettings) (*ServiceAccount, error) {
	if path := strings.TrimSpace(settings.File); path != "" {
		contents, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("service_account.file: %v: %w", readErr, ErrServerMisconfigured)
		}
		var document serviceAccountDocument
		if decodeErr := json.Unmarshal(contents, &document); decodeErr != nil {
			return nil, fmt.Errorf("service_account.file: %v: %w", decodeErr, ErrServerMisconfigured)
		}
		if document.ProjectID == "" || document.ClientEmail == "" || document.PrivateKey == "" {
			return nil, fmt.Errorf("service_account.file: incomplete credential: %w", ErrServerMisconfigured)
		}
		return &ServiceAccount{
			ProjectID:       document.ProjectID,
			ClientEmail:     document.ClientEmail,
			Source:          CredentialSourceFile,
			credentialsJSON: contents,
		}, nil
	}

	projectID := strings.TrimSpace(settings.ProjectID)
	clientEmail := strings.TrimSpace(settings.ClientEmail)
	privateKey := strings.ReplaceAll(strings.TrimSpace(settings.PrivateKey), `\n`, "\n")
	if projectID != "" && clientEmail != "" && privateKey != "" {
		contents, encodeErr := json.Marshal(serviceAccountDocument{
			Type:        "service_account",
			ProjectID:   projectID,
			ClientEmail: clientEmail,
			PrivateKey:  privateKey,
			TokenURI:    "https://oauth2.googleapis.com/token",
		})
		if encodeErr != nil {
			return nil, fmt.Errorf("service_account.environment: %v: %w", encodeErr, ErrServerMisconfigured)
		}
		return &ServiceAccount{
			ProjectID:       projectID,
			ClientEmail:     clientEmail,
			Source:          CredentialSourceEnvironment,
			credentialsJSON: contents,
		}, nil
	}

	credentials, defaultErr := findDefaultCredentials(ctx, cloudPlatformScope)
	if defaultErr != nil {
		return nil, fmt.Errorf("service_account.default: %v: %w", defaultErr, ErrServerMisconfigured)
	}
	resolvedProjectID := credentials.ProjectID
	if resolvedProjectID == "" {
		resolvedProjectID = projectID
	}
	return &ServiceAccount{
		ProjectID: resolvedProjectID,
		Source:    CredentialSourceDefault,
	}, nil
}

// ClientOptions returns Google API client options authenticating as this account.
// Ambient default credentials need no explicit option.
func (account *ServiceAccount) ClientOptions() []option.ClientOption {
	if account == nil || len(account.credentialsJSON) == 0 {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsJSON(account.credentialsJSON)}
}
