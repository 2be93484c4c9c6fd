package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"complaintdesk/internal/hash"
	"complaintdesk/internal/logging"
	"complaintdesk/internal/models"
	"complaintdesk/internal/repo"
	"complaintdesk/internal/token"
)

var (
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRevoked            = errors.New("token has been revoked")
	ErrUnauthorized       = errors.New("unauthorized")
)

const (
	reasonRefreshUsed  = "Refresh token used"
	reasonLoggedOut    = "User logged out"
	reasonOwnerMissing = "owner missing, possible compromise"
)

// Service issues, rotates, revokes and resolves bearer tokens. Every
// decision is re-derived from the ledger on each call; the only in-process
// state is the immutable configuration.
type Service struct {
	Users      *repo.UserRepo
	Tokens     *repo.TokenRepo
	Codec      *token.Codec
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Session struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType        string    `json:"token_type"`
}

type AccessGrant struct {
	AccessToken     string    `json:"access_token"`
	AccessExpiresAt time.Time `json:"access_token_expires_at"`
	TokenType       string    `json:"token_type"`
}

// Login authenticates by email and mints an access+refresh pair. Unknown
// user and wrong password are deliberately indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, passwd string) (*Session, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, passwd) {
		return nil, ErrInvalidCredentials
	}

	accessToken, accessJTI, accessExp, err := s.Codec.Encode(user.Username, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshJTI, refreshExp, err := s.Codec.Encode(user.Username, s.RefreshTTL)
	if err != nil {
		return nil, err
	}

	accessRow := &models.Token{
		UserID:    user.ID,
		JTI:       accessJTI,
		Type:      models.TokenTypeAccess,
		ExpiresAt: accessExp,
	}
	refreshRow := &models.Token{
		UserID:    user.ID,
		JTI:       refreshJTI,
		AccessJTI: accessJTI,
		Type:      models.TokenTypeRefresh,
		ExpiresAt: refreshExp,
	}
	if err := s.Tokens.CreateSessionPair(ctx, accessRow, refreshRow); err != nil {
		return nil, err
	}

	l.Info("session_issued", "user_id", user.ID, "access_jti", accessJTI, "refresh_jti", refreshJTI)

	return &Session{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		TokenType:        "bearer",
	}, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is never replaced; only its linked access token
// rotates. Mint, revoke-old and relink are one atomic unit.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AccessGrant, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	username, jti, err := s.Codec.Decode(refreshToken)
	if err != nil {
		l.Warn("refresh_rejected", "reason", err.Error())
		return nil, ErrInvalidToken
	}

	row, err := s.Tokens.FindByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if row.Revoked {
		return nil, ErrRevoked
	}

	user, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	accessToken, accessJTI, accessExp, err := s.Codec.Encode(user.Username, s.AccessTTL)
	if err != nil {
		return nil, err
	}
	newAccess := &models.Token{
		UserID:    user.ID,
		JTI:       accessJTI,
		Type:      models.TokenTypeAccess,
		ExpiresAt: accessExp,
	}
	if err := s.Tokens.Rotate(ctx, row, newAccess, reasonRefreshUsed); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	l.Info("access_rotated", "user_id", user.ID, "old_access_jti", row.AccessJTI, "new_access_jti", accessJTI)

	return &AccessGrant{
		AccessToken:     accessToken,
		AccessExpiresAt: accessExp,
		TokenType:       "bearer",
	}, nil
}

// Logout revokes the presented access token.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	_, jti, err := s.Codec.Decode(accessToken)
	if err != nil {
		l.Warn("logout_rejected", "reason", err.Error())
		return ErrInvalidToken
	}

	row, err := s.Tokens.FindByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if row.Revoked {
		return ErrRevoked
	}

	return s.Tokens.Revoke(ctx, row.JTI, reasonLoggedOut)
}

// LogoutAll revokes every active token owned by the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID, reason string) error {
	return s.Tokens.RevokeAllActive(ctx, userID, reason)
}

// PurgeRevoked drops every revoked ledger row.
func (s *Service) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.Tokens.PurgeRevoked(ctx)
}

// ResolvePrincipal is the gate every protected operation goes through.
// Whatever actually failed, the caller only ever sees ErrUnauthorized; the
// cause is kept for logs.
func (s *Service) ResolvePrincipal(ctx context.Context, accessToken string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.resolve")

	username, jti, err := s.Codec.Decode(accessToken)
	if err != nil {
		l.Warn("principal_rejected", "reason", err.Error())
		return nil, ErrUnauthorized
	}

	row, err := s.Tokens.FindByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("principal_rejected", "reason", "token not in ledger", "jti", jti)
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if row.Revoked {
		l.Warn("principal_rejected", "reason", "token revoked", "jti", jti)
		return nil, ErrUnauthorized
	}

	user, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A valid signed token whose owner is gone smells like a
			// compromise; take the token out of circulation.
			if revokeErr := s.Tokens.Revoke(ctx, row.JTI, reasonOwnerMissing); revokeErr != nil {
				l.Error("revoke_orphan_token_failed", "jti", row.JTI, "error", revokeErr)
			}
			l.Warn("principal_rejected", "reason", "owner missing", "jti", jti)
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if !user.IsActive {
		l.Warn("principal_rejected", "reason", "user inactive", "user_id", user.ID)
		return nil, ErrUnauthorized
	}
	if !user.IsEmailVerified {
		l.Warn("principal_rejected", "reason", "email not verified", "user_id", user.ID)
		return nil, ErrUnauthorized
	}

	return user, nil
}
