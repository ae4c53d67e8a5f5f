package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"recruit-portal/internal/common/errors"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/common/metrics"
	"recruit-portal/internal/models"
)

// Provider is the portal's identity collaborator: Keycloak owns credentials
// and roles, Redis owns the session records behind browser cookies.
type Provider struct {
	keycloak   *KeycloakClient
	store      *SessionStore
	sessionTTL time.Duration
	logger     logger.Logger
}

func NewProvider(kc *KeycloakClient, store *SessionStore, sessionTTL time.Duration, log logger.Logger) *Provider {
	return &Provider{
		keycloak:   kc,
		store:      store,
		sessionTTL: sessionTTL,
		logger:     log.WithFields(map[string]interface{}{"component": "identity"}),
	}
}

// SignUpRequest is a self-service registration. New accounts are candidates;
// HR administrators are provisioned in Keycloak directly.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// SignIn authenticates with Keycloak and opens a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.NewValidationError("Email and password are required")
	}

	tok, err := p.keycloak.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	info, err := p.keycloak.Introspect(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	identity, err := info.Identity()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		ID:           uuid.NewString(),
		Identity:     *identity,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(p.sessionTTL),
	}
	if err := p.store.Save(ctx, sess); err != nil {
		return nil, errors.NewInternalError(err)
	}
	p.publish(ctx, models.SessionEvent{Type: models.SessionSignedIn, SessionID: sess.ID, Identity: identity})
	metrics.SessionsActive.Inc()

	p.logger.Info("User signed in", map[string]interface{}{
		"session_id": sess.ID,
		"user_id":    identity.UserID,
		"role":       identity.Role,
	})
	return sess, nil
}

// SignUp registers a candidate account and signs it in.
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (*models.Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		return nil, errors.NewValidationError("Email and password are required")
	}

	first, last, _ := strings.Cut(strings.TrimSpace(req.FullName), " ")
	_, err := p.keycloak.CreateUser(ctx, &User{
		Email:     req.Email,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Enabled:   true,
		Credentials: []Credential{{
			Type:  "password",
			Value: req.Password,
		}},
	}, models.RoleCandidate)
	if err != nil {
		return nil, err
	}
	return p.SignIn(ctx, req.Email, req.Password)
}

// Resolve returns the identity behind a session, or nil for an anonymous one.
// An expired access token is renewed with the refresh token once.
func (p *Provider) Resolve(ctx context.Context, sessionID string) (*models.Identity, error) {
	if sessionID == "" {
		return nil, nil
	}
	sess, ok, err := p.store.Load(ctx, sessionID)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if !ok {
		return nil, nil
	}

	info, err := p.keycloak.Introspect(ctx, sess.AccessToken)
	if errors.IsCode(err, errors.ErrCodeUnauthorized) {
		info, err = p.renew(ctx, sess)
		if errors.IsCode(err, errors.ErrCodeUnauthorized) {
			p.logger.Info("Session expired", map[string]interface{}{"session_id": sessionID})
			p.drop(ctx, sessionID, true)
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}

	identity, err := info.Identity()
	if err != nil {
		return nil, nil
	}
	return identity, nil
}

func (p *Provider) renew(ctx context.Context, sess *models.Session) (*TokenInfo, error) {
	if sess.RefreshToken == "" {
		return nil, errors.NewUnauthorizedError("session expired")
	}
	tok, err := p.keycloak.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return nil, err
	}
	info, err := p.keycloak.Introspect(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}

	sess.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		sess.RefreshToken = tok.RefreshToken
	}
	if err := p.store.Save(ctx, sess); err != nil {
		p.logger.Warn("Failed to persist renewed session", map[string]interface{}{
			"session_id": sess.ID,
			"error":      err.Error(),
		})
	}
	return info, nil
}

// SignOut revokes the session at Keycloak, deletes it and notifies watchers.
// Revocation failures are logged; the local session is removed regardless.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	sess, ok, err := p.store.Load(ctx, sessionID)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if ok && sess.RefreshToken != "" {
		if err := p.keycloak.Logout(ctx, sess.RefreshToken); err != nil {
			p.logger.Warn("Keycloak logout failed", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}
	p.drop(ctx, sessionID, ok)
	p.logger.Info("User signed out", map[string]interface{}{"session_id": sessionID})
	return nil
}

func (p *Provider) drop(ctx context.Context, sessionID string, existed bool) {
	if err := p.store.Delete(ctx, sessionID); err != nil {
		p.logger.Warn("Failed to delete session", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	p.publish(ctx, models.SessionEvent{Type: models.SessionSignedOut, SessionID: sessionID})
	if existed {
		metrics.SessionsActive.Dec()
	}
}

// Watch subscribes to identity changes of one session.
func (p *Provider) Watch(ctx context.Context, sessionID string) (<-chan models.SessionEvent, func(), error) {
	return p.store.Watch(ctx, sessionID)
}

func (p *Provider) publish(ctx context.Context, ev models.SessionEvent) {
	if err := p.store.Publish(ctx, ev); err != nil {
		p.logger.Warn("Failed to publish session event", map[string]interface{}{
			"session_id": ev.SessionID,
			"type":       ev.Type,
			"error":      err.Error(),
		})
	}
}
