package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Provisioner creates the default profile the first time an identity signs in.
type Provisioner struct {
	store  Store
	logger *zap.Logger
}

// NewProvisioner wires the provisioner to a store.
func NewProvisioner(store Store, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{store: store, logger: logger}
}

// EnsureProfile writes Defaults(seed) unless a profile already exists. It never
// overwrites an existing record, so repeated calls are harmless.
func (provisioner *Provisioner) EnsureProfile(ctx context.Context, seed Seed) (bool, error) {
	if err := requireUserID("ensure", seed.UserID); err != nil {
		return false, err
	}
	created, err := provisioner.store.CreateIfAbsent(ctx, Defaults(seed))
	if err != nil {
		provisioner.logger.Warn("profile provisioning failed", zap.String("code", "profile.ensure"), zap.String("user_id", seed.UserID), zap.Error(err))
		return false, fmt.Errorf("profile.ensure: %w", err)
	}
	if created {
		provisioner.logger.Info("profile provisioned", zap.String("user_id", seed.UserID))
	}
	return created, nil
}
