package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"complaintdesk/internal/auth"
	"complaintdesk/internal/complaint"
	"complaintdesk/internal/hash"
	"complaintdesk/internal/models"
	"complaintdesk/internal/repo"
	"complaintdesk/internal/token"
	"complaintdesk/internal/verify"
)

type fakeNotifier struct {
	otps   map[string]string
	resets map[string]string
	fail   bool
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

type testServer struct {
	e        *echo.Echo
	db       *gorm.DB
	notifier *fakeNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Token{}, &models.Otp{},
		&models.Complaint{}, &models.Feedback{},
	))

	users := repo.NewUserRepo(db)
	tokens := repo.NewTokenRepo(db)
	codec := token.NewCodec([]byte("test-secret"))
	notifier := &fakeNotifier{otps: map[string]string{}, resets: map[string]string{}}

	authSvc := &auth.Service{
		Users:      users,
		Tokens:     tokens,
		Codec:      codec,
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
	verifySvc := &verify.Service{
		Users:    users,
		Otps:     repo.NewOtpRepo(db),
		Codec:    codec,
		Notifier: notifier,
		ResetTTL: 30 * time.Minute,
	}
	complaintSvc := &complaint.Service{Complaints: repo.NewComplaintRepo(db)}

	e := echo.New()
	Register(e, &Deps{Auth: authSvc, Verify: verifySvc, Complaints: complaintSvc})

	return &testServer{e: e, db: db, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *testServer) createUser(t *testing.T, username string, superuser bool) *models.User {
	t.Helper()

	pwHash, err := hash.HashPassword("Secret1!")
	require.NoError(t, err)
	u := &models.User{
		Username:        username,
		Email:           username + "@example.com",
		PasswordHash:    pwHash,
		IsActive:        true,
		IsSuperuser:     superuser,
		IsEmailVerified: true,
	}
	require.NoError(t, s.db.Create(u).Error)
	return u
}

func (s *testServer) login(t *testing.T, email string) (access, refresh string) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/api/auth/token", "", echo.Map{
		"email": email, "password": "Secret1!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestAuthFlow_EndToEnd(t *testing.T) {
	srv := newTestServer(t)

	// Register mails the first verification code.
	rec := srv.do(t, http.MethodPost, "/api/auth/register", "", echo.Map{
		"username": "alice", "email": "alice@example.com", "password": "Secret1!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	code := srv.notifier.otps["alice@example.com"]
	require.NotEmpty(t, code)

	// Unverified users hit the gate even with valid credentials.
	access, _ := srv.login(t, "alice@example.com")
	rec = srv.do(t, http.MethodGet, "/api/auth/me", access, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/verify-email", "", echo.Map{
		"email": "alice@example.com", "otp": code,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	access, refresh := srv.login(t, "alice@example.com")

	rec = srv.do(t, http.MethodGet, "/api/auth/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)
	assert.Equal(t, "alice", me["username"])
	assert.NotContains(t, rec.Body.String(), "password")

	// Exchange the refresh token: old access dies, new one works.
	rec = srv.do(t, http.MethodPost, "/api/auth/token/refresh", refresh, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	newAccess := decodeBody(t, rec)["access_token"].(string)

	rec = srv.do(t, http.MethodGet, "/api/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/auth/me", newAccess, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/logout", newAccess, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = srv.do(t, http.MethodPost, "/api/auth/logout", newAccess, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", false)

	rec := srv.do(t, http.MethodPost, "/api/auth/token", "", echo.Map{
		"email": "alice@example.com", "password": "WrongPw1!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/token", "", echo.Map{
		"email": "nobody@example.com", "password": "Secret1!",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutes_RequireBearerToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/complaints", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordReset_OverHTTP(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", false)

	rec := srv.do(t, http.MethodPost, "/api/auth/forgot-password", "", echo.Map{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/forgot-password", "", echo.Map{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	resetToken := srv.notifier.resets["alice@example.com"]
	require.NotEmpty(t, resetToken)

	rec = srv.do(t, http.MethodPost, "/api/auth/reset-password", resetToken, echo.Map{
		"password": "weak",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/reset-password", resetToken, echo.Map{
		"password": "NewSecret2!",
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/auth/token", "", echo.Map{
		"email": "alice@example.com", "password": "NewSecret2!",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestComplaints_OverHTTP(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", false)
	srv.createUser(t, "bob", false)
	aliceTok, _ := srv.login(t, "alice@example.com")
	bobTok, _ := srv.login(t, "bob@example.com")

	rec := srv.do(t, http.MethodPost, "/api/complaints", aliceTok, echo.Map{
		"type": "billing", "description": "charged twice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := created["id"].(string)
	assert.Equal(t, models.ComplaintStatusNew, created["status"])

	rec = srv.do(t, http.MethodPost, "/api/complaints", aliceTok, echo.Map{
		"type": "billing",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/complaints/"+id, aliceTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/complaints/"+id, bobTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/complaints", aliceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listing := decodeBody(t, rec)
	assert.EqualValues(t, 1, listing["total"])

	rec = srv.do(t, http.MethodGet, "/api/complaints/count/new", aliceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])
	rec = srv.do(t, http.MethodGet, "/api/complaints/count/bogus", aliceTok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/complaints/"+id+"/feedback", aliceTok, echo.Map{
		"message": "any update?",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/complaints/"+id+"/feedback", aliceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var feed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "any update?", feed[0]["message"])
}

func TestAdminEndpoints_RequireSuperuser(t *testing.T) {
	srv := newTestServer(t)
	srv.createUser(t, "alice", false)
	srv.createUser(t, "admin", true)
	aliceTok, _ := srv.login(t, "alice@example.com")
	adminTok, _ := srv.login(t, "admin@example.com")

	rec := srv.do(t, http.MethodPost, "/api/complaints", aliceTok, echo.Map{
		"type": "billing", "description": "charged twice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeBody(t, rec)["id"].(string)

	rec = srv.do(t, http.MethodGet, "/api/admin/complaints", aliceTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = srv.do(t, http.MethodGet, "/api/admin/complaints", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/api/admin/complaints/"+id+"/status", adminTok, echo.Map{
		"status": "pending",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.ComplaintStatusPending, decodeBody(t, rec)["status"])

	rec = srv.do(t, http.MethodPatch, "/api/admin/complaints/"+id+"/status", adminTok, echo.Map{
		"status": "new",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/admin/tokens/purge", adminTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	offset, limit := paginate(0, 0)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 10, limit)

	offset, limit = paginate(3, 25)
	assert.Equal(t, 50, offset)
	assert.Equal(t, 25, limit)

	_, limit = paginate(1, 1000)
	assert.Equal(t, 10, limit)
}
