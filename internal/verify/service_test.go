package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"complaintdesk/internal/hash"
	"complaintdesk/internal/models"
	"complaintdesk/internal/repo"
	"complaintdesk/internal/token"
)

// fakeNotifier records what would have been mailed so tests can read the
// code or token back.
type fakeNotifier struct {
	otps   map[string]string
	resets map[string]string
	fail   bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{otps: map[string]string{}, resets: map[string]string{}}
}

func (f *fakeNotifier) SendOtp(email, code string) error {
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.otps[email] = code
	return nil
}

func (f *fakeNotifier) SendPasswordReset(email, resetToken string) error {
	if f.fail {
		return errors.New("smtp unreachable")
	}
	f.resets[email] = resetToken
	return nil
}

type testEnv struct {
	db       *gorm.DB
	svc      *Service
	users    *repo.UserRepo
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Token{}, &models.Otp{}))

	users := repo.NewUserRepo(db)
	notifier := newFakeNotifier()

	return &testEnv{
		db:       db,
		users:    users,
		notifier: notifier,
		svc: &Service{
			Users:    users,
			Otps:     repo.NewOtpRepo(db),
			Codec:    token.NewCodec([]byte("test-secret")),
			Notifier: notifier,
			ResetTTL: 30 * time.Minute,
		},
	}
}

func (e *testEnv) createUser(t *testing.T, username, email, passwd string, verified bool) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword(passwd)
	require.NoError(t, err)

	u := &models.User{
		Username:        username,
		Email:           email,
		PasswordHash:    pwHash,
		IsActive:        true,
		IsEmailVerified: verified,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func TestGenerateCode_AlphabetAndLength(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, otpLength)
		for _, ch := range code {
			assert.Contains(t, otpAlphabet, string(ch))
		}
	}
}

func TestRegister_CreatesUnverifiedUserAndMailsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.svc.Register(ctx, "alice", "alice@example.com", "Secret1!")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsEmailVerified)
	assert.False(t, user.IsSuperuser)
	assert.NotEqual(t, "Secret1!", user.PasswordHash)

	code, ok := env.notifier.otps["alice@example.com"]
	require.True(t, ok)
	require.Len(t, code, otpLength)
}

func TestRegister_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", true)

	_, err := env.svc.Register(ctx, "alice2", "alice@example.com", "Secret1!")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svc.Register(ctx, "bob", "bob@example.com", "weak")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestRequestEmailOtp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)
	env.createUser(t, "carol", "carol@example.com", "Secret1!", true)

	assert.ErrorIs(t, env.svc.RequestEmailOtp(ctx, "nobody@example.com"), ErrUserNotFound)
	assert.ErrorIs(t, env.svc.RequestEmailOtp(ctx, "carol@example.com"), ErrAlreadyVerified)
	assert.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	assert.NotEmpty(t, env.notifier.otps["alice@example.com"])
}

func TestConfirmEmailOtp_SingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	code := env.notifier.otps["alice@example.com"]

	require.NoError(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", code))

	got, err := env.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEmailVerified)

	// The row is consumed, so replaying the same code finds nothing.
	assert.ErrorIs(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", code), ErrNotFound)
}

func TestConfirmEmailOtp_CaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	code := env.notifier.otps["alice@example.com"]

	assert.NoError(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", strings.ToLower(code)))
}

func TestConfirmEmailOtp_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	assert.ErrorIs(t, env.svc.ConfirmEmailOtp(ctx, "nobody@example.com", "ABC123"), ErrUserNotFound)
	assert.ErrorIs(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", "ABC123"), ErrNotFound)

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	assert.ErrorIs(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", "WRONG1"), ErrInvalidOtp)
}

func TestRequestEmailOtp_ReissueSupersedes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	first := env.notifier.otps["alice@example.com"]

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	second := env.notifier.otps["alice@example.com"]
	require.NotEqual(t, first, second)

	var count int64
	require.NoError(t, env.db.Model(&models.Otp{}).Where("email = ?", "alice@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	assert.ErrorIs(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", first), ErrInvalidOtp)
	assert.NoError(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", second))
}

// Codes carry no expiry of their own. A row issued long ago still confirms.
func TestConfirmEmailOtp_OldCodeStillValid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	require.NoError(t, env.svc.RequestEmailOtp(ctx, "alice@example.com"))
	code := env.notifier.otps["alice@example.com"]

	ancient := time.Now().UTC().Add(-90 * 24 * time.Hour)
	require.NoError(t, env.db.Model(&models.Otp{}).
		Where("email = ?", "alice@example.com").
		Update("created_at", ancient).Error)

	assert.NoError(t, env.svc.ConfirmEmailOtp(ctx, "alice@example.com", code))
}

func TestIssueOtp_DeliveryFailureKeepsRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", false)

	env.notifier.fail = true
	err := env.svc.RequestEmailOtp(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrDeliveryFailure)

	// The write committed before the send, so the row survives.
	var count int64
	require.NoError(t, env.db.Model(&models.Otp{}).Where("email = ?", "alice@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPasswordReset_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "alice@example.com", "Secret1!", true)

	assert.ErrorIs(t, env.svc.RequestPasswordReset(ctx, "nobody@example.com"), ErrUserNotFound)

	require.NoError(t, env.svc.RequestPasswordReset(ctx, "alice@example.com"))
	resetToken := env.notifier.resets["alice@example.com"]
	require.NotEmpty(t, resetToken)

	// Reset tokens are signed-only credentials, never written to the
	// session ledger.
	var ledgerRows int64
	require.NoError(t, env.db.Model(&models.Token{}).Count(&ledgerRows).Error)
	assert.EqualValues(t, 0, ledgerRows)

	require.NoError(t, env.svc.ConfirmPasswordReset(ctx, resetToken, "NewSecret2!"))

	got, err := env.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, hash.CheckPassword(got.PasswordHash, "NewSecret2!"))
	assert.False(t, hash.CheckPassword(got.PasswordHash, "Secret1!"))
}

func TestConfirmPasswordReset_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "alice@example.com", "Secret1!", true)

	assert.ErrorIs(t, env.svc.ConfirmPasswordReset(ctx, "garbage", "NewSecret2!"), ErrInvalidToken)

	expired, _, _, err := env.svc.Codec.Encode("alice", -time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.ConfirmPasswordReset(ctx, expired, "NewSecret2!"), ErrExpiredToken)

	valid, _, _, err := env.svc.Codec.Encode("alice", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.ConfirmPasswordReset(ctx, valid, "weak"), ErrWeakPassword)
	assert.ErrorIs(t, env.svc.ConfirmPasswordReset(ctx, valid, "Secret1!"), ErrSamePassword)

	orphan, _, _, err := env.svc.Codec.Encode("ghost", time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, env.svc.ConfirmPasswordReset(ctx, orphan, "NewSecret2!"), ErrInvalidToken)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t, "alice", "alice@example.com", "Secret1!", true)

	assert.ErrorIs(t, env.svc.ChangePassword(ctx, alice, "Wrong1!x", "NewSecret2!"), ErrWrongPassword)
	assert.ErrorIs(t, env.svc.ChangePassword(ctx, alice, "Secret1!", "weak"), ErrWeakPassword)
	assert.ErrorIs(t, env.svc.ChangePassword(ctx, alice, "Secret1!", "Secret1!"), ErrSamePassword)

	require.NoError(t, env.svc.ChangePassword(ctx, alice, "Secret1!", "NewSecret2!"))

	got, err := env.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, hash.CheckPassword(got.PasswordHash, "NewSecret2!"))
}
