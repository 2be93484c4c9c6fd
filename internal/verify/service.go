package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"gorm.io/gorm"

	"complaintdesk/internal/hash"
	"complaintdesk/internal/logging"
	"complaintdesk/internal/models"
	"complaintdesk/internal/password"
	"complaintdesk/internal/repo"
	"complaintdesk/internal/token"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("user with this email already exists")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrNotFound        = errors.New("OTP not found")
	ErrInvalidOtp      = errors.New("invalid OTP")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token has expired")
	ErrWeakPassword    = errors.New("invalid password")
	ErrSamePassword    = errors.New("new password cannot be the same as the old password")
	ErrWrongPassword   = errors.New("incorrect old password")
	ErrDeliveryFailure = errors.New("could not deliver email")
)

const otpAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const otpLength = 6

// Notifier delivers mail. Sends happen strictly after the matching DB
// commit, so a delivery failure never rolls persisted state back.
type Notifier interface {
	SendOtp(email, code string) error
	SendPasswordReset(email, resetToken string) error
}

// Service owns OTP issuance/validation and the password reset and change
// flows.
type Service struct {
	Users    *repo.UserRepo
	Otps     *repo.OtpRepo
	Codec    *token.Codec
	Notifier Notifier
	ResetTTL time.Duration
}

// GenerateCode draws a 6-character code uniformly from [0-9A-Z] using the
// crypto RNG.
func GenerateCode() (string, error) {
	b := make([]byte, otpLength)
	alphaLen := big.NewInt(int64(len(otpAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, alphaLen)
		if err != nil {
			return "", err
		}
		b[i] = otpAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Register creates an unverified user and mails the first verification
// code. A delivery failure leaves the user and OTP row in place.
func (s *Service) Register(ctx context.Context, username, email, passwd string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "verify.register")

	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := password.Validate(passwd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	pwHash, err := hash.HashPassword(passwd)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		IsActive:     true,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	l.Info("user_registered", "user_id", user.ID)

	if err := s.issueOtp(ctx, user.Email); err != nil {
		return user, err
	}
	return user, nil
}

// RequestEmailOtp issues a fresh verification code, superseding any
// existing one for the address.
func (s *Service) RequestEmailOtp(ctx context.Context, email string) error {
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsEmailVerified {
		return ErrAlreadyVerified
	}
	return s.issueOtp(ctx, user.Email)
}

func (s *Service) issueOtp(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "verify.issue_otp")

	code, err := GenerateCode()
	if err != nil {
		return err
	}
	codeHash, err := hash.HashPassword(code)
	if err != nil {
		return err
	}
	if err := s.Otps.Replace(ctx, email, codeHash); err != nil {
		return err
	}

	l.Info("otp_issued")

	if err := s.Notifier.SendOtp(email, code); err != nil {
		l.Error("otp_delivery_failed", "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// ConfirmEmailOtp validates a code and marks the email verified. The row is
// deleted on success, so a replay of the same code fails with ErrNotFound.
// Codes are compared case-insensitively and never expire on their own; a
// row stays valid until confirmed or superseded.
func (s *Service) ConfirmEmailOtp(ctx context.Context, email, code string) error {
	l := logging.FromContext(ctx).With("svc", "verify.confirm_otp")

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	otp, err := s.Otps.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !hash.CheckPassword(otp.CodeHash, strings.ToUpper(code)) {
		return ErrInvalidOtp
	}

	if err := s.Users.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	if err := s.Otps.Delete(ctx, otp); err != nil {
		return err
	}

	l.Info("email_verified", "user_id", user.ID)
	return nil
}

// RequestPasswordReset mints a short-lived signed reset token. The token is
// deliberately not written to the ledger: it is a bare signed credential,
// valid until expiry regardless of session revocation. Unlike login, this
// path does report an unknown address.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "verify.request_reset")

	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	resetToken, _, _, err := s.Codec.Encode(user.Username, s.ResetTTL)
	if err != nil {
		return err
	}

	l.Info("reset_token_issued", "user_id", user.ID)

	if err := s.Notifier.SendPasswordReset(user.Email, resetToken); err != nil {
		l.Error("reset_delivery_failed", "error", err)
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// ConfirmPasswordReset verifies the reset token by signature and expiry
// alone and persists the new password hash.
func (s *Service) ConfirmPasswordReset(ctx context.Context, resetToken, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "verify.confirm_reset")

	username, _, err := s.Codec.Decode(resetToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return ErrExpiredToken
		}
		l.Warn("reset_rejected", "reason", err.Error())
		return ErrInvalidToken
	}

	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	user, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if hash.CheckPassword(user.PasswordHash, newPassword) {
		return ErrSamePassword
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, user.ID, pwHash); err != nil {
		return err
	}

	l.Info("password_reset", "user_id", user.ID)
	return nil
}

// ChangePassword is the authenticated variant: the old password gates the
// change.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrWrongPassword
	}
	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	if newPassword == oldPassword || hash.CheckPassword(user.PasswordHash, newPassword) {
		return ErrSamePassword
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Users.UpdatePassword(ctx, user.ID, pwHash)
}
