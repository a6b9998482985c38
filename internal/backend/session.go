package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fluentquest/backend/internal/domain"
	"github.com/fluentquest/backend/internal/storage"
)

// Storage records for the single-device local deployment.
const (
	identityKey = "fluentquest_identity"
	sessionKey  = "fluentquest_session"
)

// localAuth manages the anonymous single-device session. The pseudo
// identity is minted once at first sign-in and never reused for another
// player.
type localAuth struct {
	store  storage.Store
	logger *slog.Logger
}

func newLocalAuth(store storage.Store, logger *slog.Logger) *localAuth {
	return &localAuth{store: store, logger: logger}
}

// SignIn ensures the device identity exists and marks it signed in
func (a *localAuth) SignIn(ctx context.Context) (*domain.Session, error) {
	identity, err := a.ensureIdentity(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.store.Set(ctx, sessionKey, identity); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}
	return &domain.Session{Identity: identity}, nil
}

// GetSession returns the signed-in identity, or an empty session
func (a *localAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	identity, _, err := a.store.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &domain.Session{Identity: identity}, nil
}

// SignOut clears the signed-in marker, keeping the device identity
func (a *localAuth) SignOut(ctx context.Context) error {
	if err := a.store.Set(ctx, sessionKey, ""); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (a *localAuth) ensureIdentity(ctx context.Context) (string, error) {
	identity, found, err := a.store.Get(ctx, identityKey)
	if err != nil {
		return "", fmt.Errorf("loading identity: %w", err)
	}
	if found && identity != "" {
		return identity, nil
	}

	identity = uuid.New().String()
	if err := a.store.Set(ctx, identityKey, identity); err != nil {
		return "", fmt.Errorf("persisting identity: %w", err)
	}
	a.logger.Info("created device identity")
	return identity, nil
}
