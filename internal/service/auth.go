package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/taskboard/internal/apperror"
	"github.com/sakif/taskboard/internal/auth"
	"github.com/sakif/taskboard/internal/model"
	"github.com/sakif/taskboard/internal/repository"
)

// LoginMethodGitHub is recorded on users who signed in through GitHub.
const LoginMethodGitHub = "github"

// ErrSessionsDisabled is returned when no JWT secret is configured.
var ErrSessionsDisabled = errors.New("sessions are not configured")

// AuthService owns user accounts and sessions.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService (JWT), Revoker (Redis)
//
// tokens may be nil (no JWT secret): every session is then rejected and
// SignIn fails. revoker may be nil: logout then only clears the cookie.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	revoker     auth.Revoker
	ownerOpenID string
	now         func() time.Time
	logger      *slog.Logger
}

var _ auth.Authenticator = (*AuthService)(nil)

// NewAuthService creates an AuthService. ownerOpenID names the account that
// is made admin when it signs in.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	revoker auth.Revoker,
	ownerOpenID string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		revoker:     revoker,
		ownerOpenID: ownerOpenID,
		now:         time.Now,
		logger:      logger,
	}
}

// UpsertUser creates the account for identity.OpenID or refreshes it.
//
// RULES:
//   - openId is required; without it the call fails.
//   - Supplied fields go into both the new row and the update.
//   - Role: the supplied role, else admin for the configured owner, else the
//     column default ("user") on insert and no change on update.
//   - lastSignedIn: the supplied time, else now for a new row. An update with
//     nothing else to change still stamps lastSignedIn = now.
//
// When no database is configured the upsert is skipped with a warning, so
// sign-in still completes.
func (s *AuthService) UpsertUser(ctx context.Context, identity model.UserIdentity) error {
	if identity.OpenID == "" {
		return fmt.Errorf("service/auth: user openId is required for upsert")
	}

	upsert := s.buildUpsert(identity)

	if err := s.users.Upsert(ctx, upsert); err != nil {
		if errors.Is(err, apperror.ErrUnavailable) {
			s.logger.Warn("cannot upsert user: database not available",
				slog.String("openID", identity.OpenID),
			)
			return nil
		}
		s.logger.Error("failed to upsert user",
			slog.String("openID", identity.OpenID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service/auth: upserting user (openID=%s): %w", identity.OpenID, err)
	}

	return nil
}

func (s *AuthService) buildUpsert(identity model.UserIdentity) model.UserUpsert {
	fields := model.UserFields{
		Name:         identity.Name,
		Email:        identity.Email,
		LoginMethod:  identity.LoginMethod,
		LastSignedIn: identity.LastSignedIn,
	}

	switch {
	case identity.Role != nil:
		fields.Role = identity.Role
	case s.ownerOpenID != "" && identity.OpenID == s.ownerOpenID:
		admin := model.RoleAdmin
		fields.Role = &admin
	}

	insert, update := fields, fields

	if insert.LastSignedIn == nil {
		now := s.now()
		insert.LastSignedIn = &now
	}
	if update.Empty() {
		now := s.now()
		update.LastSignedIn = &now
	}

	return model.UserUpsert{OpenID: identity.OpenID, Insert: insert, Update: update}
}

// GetUserByOpenID returns the account, or nil when there is none (or no
// database to look in).
func (s *AuthService) GetUserByOpenID(ctx context.Context, openID string) (*model.User, error) {
	user, err := s.users.GetByOpenID(ctx, openID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", openID, err)
	}
	return user, nil
}

// SignInResult bundles the account and its new session so the handler can
// set the cookie and redirect in one step. User is nil when the account
// could not be stored (no database).
type SignInResult struct {
	User    *model.User
	Token   string
	Session auth.Session
}

// SignIn handles the end of the GitHub OAuth flow: it upserts the account
// and issues a session token for it.
//
// It does NOT set cookies or read HTTP requests; that is the handler's job.
func (s *AuthService) SignIn(ctx context.Context, ghUser *auth.GitHubUser) (*SignInResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	if s.tokens == nil {
		return nil, ErrSessionsDisabled
	}

	now := s.now()
	loginMethod := LoginMethodGitHub
	identity := model.UserIdentity{
		OpenID:       ghUser.OpenID(),
		Name:         optional(ghUser.DisplayName()),
		Email:        optional(ghUser.Email),
		LoginMethod:  &loginMethod,
		LastSignedIn: &now,
	}

	if err := s.UpsertUser(ctx, identity); err != nil {
		return nil, err
	}

	user, err := s.GetUserByOpenID(ctx, identity.OpenID)
	if err != nil {
		return nil, err
	}

	token, session, err := s.tokens.Issue(identity.OpenID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %s: %w", identity.OpenID, err)
	}

	s.logger.Info("user signed in",
		slog.String("openID", identity.OpenID),
		slog.String("loginMethod", loginMethod),
	)

	return &SignInResult{User: user, Token: token, Session: session}, nil
}

// Authenticate implements auth.Authenticator. The token must be valid, not
// revoked, and name an existing account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if s.tokens == nil {
		return nil, ErrSessionsDisabled
	}

	session, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, session.TokenID)
		if err != nil {
			// Fail closed: an unverifiable session is not a session.
			s.logger.Warn("session revocation check failed",
				slog.String("openID", session.OpenID),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		if revoked {
			return nil, fmt.Errorf("service/auth: session %s was logged out", session.TokenID)
		}
	}

	user, err := s.GetUserByOpenID(ctx, session.OpenID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.Unauthorized("account not found")
	}

	return user, nil
}

// Logout revokes the session behind token so it stops working even if a
// copy of the cookie survives. Without a revoker, or for a token that is
// already invalid, there is nothing to do. A Redis failure is logged, not
// returned: the cookie is cleared either way.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" || s.tokens == nil || s.revoker == nil {
		return
	}

	session, err := s.tokens.Validate(token)
	if err != nil {
		return
	}

	if err := s.revoker.Revoke(ctx, session.TokenID, session.ExpiresAt); err != nil {
		s.logger.Warn("failed to revoke session",
			slog.String("openID", session.OpenID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Info("session revoked", slog.String("openID", session.OpenID))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
