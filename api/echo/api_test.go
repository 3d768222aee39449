package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/sessiongate/cache"
	"go.pilab.hu/sessiongate/domain"
	"go.pilab.hu/sessiongate/services"
)

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) SignUp(ctx context.Context, email, password, displayName string) (*domain.AuthResult, error) {
	args := m.Called(ctx, email, password, displayName)
	if res := args.Get(0); res != nil {
		return res.(*domain.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthenticator) SignInWithPassword(ctx context.Context, email, password string) (*domain.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if res := args.Get(0); res != nil {
		return res.(*domain.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthenticator) SignInWithIdP(ctx context.Context, providerID, idpToken string) (*domain.AuthResult, error) {
	args := m.Called(ctx, providerID, idpToken)
	if res := args.Get(0); res != nil {
		return res.(*domain.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) VerifyIDToken(ctx context.Context, idToken string) (*domain.Identity, error) {
	args := m.Called(ctx, idToken)
	if id := args.Get(0); id != nil {
		return id.(*domain.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) VerifySessionCredential(ctx context.Context, credential string) (*domain.Identity, error) {
	args := m.Called(ctx, credential)
	if id := args.Get(0); id != nil {
		return id.(*domain.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProvider) MintSessionCredential(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, idToken, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) RevokeSubject(ctx context.Context, subjectID string) error {
	args := m.Called(ctx, subjectID)
	return args.Error(0)
}

func (m *MockProvider) GetSubject(ctx context.Context, subjectID string) (*domain.Identity, error) {
	args := m.Called(ctx, subjectID)
	if id := args.Get(0); id != nil {
		return id.(*domain.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type apiFixture struct {
	api   *AuthAPI
	auth  *MockAuthenticator
	prov  *MockProvider
	users *MockUserRepository
	store *cache.MemorySessionStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	auth := new(MockAuthenticator)
	prov := new(MockProvider)
	users := new(MockUserRepository)
	store := cache.NewMemorySessionStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	sessions := services.NewSessionManager(prov, store, "app_session", services.DefaultSessionTTL)
	reconciler := services.NewAccountReconciler(users)
	return &apiFixture{
		api:   NewAuthAPI(auth, sessions, reconciler, true),
		auth:  auth,
		prov:  prov,
		users: users,
		store: store,
	}
}

func postForm(path string, form url.Values) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) ActionResult {
	t.Helper()
	var res ActionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func sessionCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "app_session" {
			return ck
		}
	}
	return nil
}

func testAuthResult() *domain.AuthResult {
	return &domain.AuthResult{
		IDToken:   "id-token-1",
		SubjectID: "subj-1",
		Profile:   domain.ProfileHint{Email: "a@example.com", DisplayName: "Alice"},
	}
}

func testIdentity() *domain.Identity {
	return &domain.Identity{
		SubjectID:   "subj-1",
		Email:       "a@example.com",
		DisplayName: "Alice",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestRegisterValidationFailure(t *testing.T) {
	f := newAPIFixture(t)
	c, rec := postForm("/auth/register", url.Values{
		"name":            {"Alice"},
		"email":           {"not-an-email"},
		"password":        {"short"},
		"confirmPassword": {"different"},
	})

	require.NoError(t, f.api.RegisterHandler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Contains(t, res.Errors["email"], msgEmailInvalid)
	assert.Contains(t, res.Errors["password"], msgPasswordTooShort)
	assert.Contains(t, res.Errors["confirmPassword"], msgPasswordMismatch)
	assert.Equal(t, "Alice", res.Name)
	assert.Equal(t, "not-an-email", res.Email)
	assert.Nil(t, sessionCookieFrom(rec))
	f.auth.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignUp", mock.Anything, "a@example.com", "password123", "Alice").
		Return(nil, domain.ErrEmailExists)

	c, rec := postForm("/auth/register", url.Values{
		"name":            {"Alice"},
		"email":           {"a@example.com"},
		"password":        {"password123"},
		"confirmPassword": {"password123"},
	})

	require.NoError(t, f.api.RegisterHandler(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, []string{msgEmailTaken}, res.Errors["email"])
	assert.Nil(t, sessionCookieFrom(rec))
}

func TestRegisterSuccessSetsCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignUp", mock.Anything, "a@example.com", "password123", "Alice").
		Return(testAuthResult(), nil)
	f.users.On("FindByID", mock.Anything, "subj-1").Return(nil, domain.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.prov.On("VerifyIDToken", mock.Anything, "id-token-1").Return(testIdentity(), nil)
	f.prov.On("MintSessionCredential", mock.Anything, "id-token-1", services.DefaultSessionTTL).
		Return("session-cred-1", nil)

	c, rec := postForm("/auth/register", url.Values{
		"name":            {"Alice"},
		"email":           {"a@example.com"},
		"password":        {"password123"},
		"confirmPassword": {"password123"},
	})

	require.NoError(t, f.api.RegisterHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	res := decodeResult(t, rec)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Email)

	ck := sessionCookieFrom(rec)
	require.NotNil(t, ck)
	assert.Equal(t, "session-cred-1", ck.Value)
	assert.True(t, ck.HttpOnly)
	f.users.AssertExpectations(t)
	f.prov.AssertExpectations(t)
}

// A record created during registration is deleted again when session
// establishment fails, so the attempt leaves nothing behind.
func TestRegisterRollsBackRecordWhenEstablishFails(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignUp", mock.Anything, "a@example.com", "password123", "Alice").
		Return(testAuthResult(), nil)
	f.users.On("FindByID", mock.Anything, "subj-1").Return(nil, domain.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.prov.On("VerifyIDToken", mock.Anything, "id-token-1").
		Return(nil, domain.ErrInvalidToken)
	f.users.On("Delete", mock.Anything, "subj-1").Return(nil)

	c, rec := postForm("/auth/register", url.Values{
		"name":            {"Alice"},
		"email":           {"a@example.com"},
		"password":        {"password123"},
		"confirmPassword": {"password123"},
	})

	require.NoError(t, f.api.RegisterHandler(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	res := decodeResult(t, rec)
	assert.Equal(t, msgTryLater, res.GeneralError)
	assert.Nil(t, sessionCookieFrom(rec))
	f.users.AssertCalled(t, "Delete", mock.Anything, "subj-1")
}

// A login that fails to establish never deletes the pre-existing record.
func TestLoginEstablishFailureKeepsExistingRecord(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignInWithPassword", mock.Anything, "a@example.com", "password123").
		Return(testAuthResult(), nil)
	f.users.On("FindByID", mock.Anything, "subj-1").
		Return(&domain.User{ID: "subj-1", Email: "a@example.com"}, nil)
	f.prov.On("VerifyIDToken", mock.Anything, "id-token-1").
		Return(nil, domain.ErrInvalidToken)

	c, rec := postForm("/auth/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"password123"},
	})

	require.NoError(t, f.api.LoginHandler(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignInWithPassword", mock.Anything, "a@example.com", "wrong-pass").
		Return(nil, domain.ErrInvalidCredentials)

	c, rec := postForm("/auth/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"wrong-pass"},
	})

	require.NoError(t, f.api.LoginHandler(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	res := decodeResult(t, rec)
	assert.False(t, res.Success)
	assert.Equal(t, []string{msgBadCredentials}, res.Errors["password"])
	assert.Equal(t, "a@example.com", res.Email)
	assert.Nil(t, sessionCookieFrom(rec))
}

func TestLoginSuccess(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignInWithPassword", mock.Anything, "a@example.com", "password123").
		Return(testAuthResult(), nil)
	f.users.On("FindByID", mock.Anything, "subj-1").
		Return(&domain.User{ID: "subj-1", Email: "a@example.com"}, nil)
	f.prov.On("VerifyIDToken", mock.Anything, "id-token-1").Return(testIdentity(), nil)
	f.prov.On("MintSessionCredential", mock.Anything, "id-token-1", services.DefaultSessionTTL).
		Return("session-cred-1", nil)

	c, rec := postForm("/auth/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"password123"},
	})

	require.NoError(t, f.api.LoginHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeResult(t, rec).Success)
	require.NotNil(t, sessionCookieFrom(rec))
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// First federated sign-in creates the directory record from the provider
// profile before the session is established.
func TestFederatedFirstLoginCreatesRecord(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.On("SignInWithIdP", mock.Anything, "google.com", "idp-token-1").
		Return(testAuthResult(), nil)
	f.users.On("FindByID", mock.Anything, "subj-1").Return(nil, domain.ErrUserNotFound)
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.ID == "subj-1" && u.Email == "a@example.com" && u.DisplayName == "Alice"
	})).Return(nil)
	f.prov.On("VerifyIDToken", mock.Anything, "id-token-1").Return(testIdentity(), nil)
	f.prov.On("MintSessionCredential", mock.Anything, "id-token-1", services.DefaultSessionTTL).
		Return("session-cred-1", nil)

	c, rec := postForm("/auth/federated", url.Values{
		"providerId": {"google.com"},
		"idpToken":   {"idp-token-1"},
	})

	require.NoError(t, f.api.FederatedLoginHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sessionCookieFrom(rec))
	f.users.AssertExpectations(t)
}

func TestLogoutRedirectsHomeAndClearsCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.prov.On("VerifySessionCredential", mock.Anything, "session-cred-1").
		Return(testIdentity(), nil)
	f.prov.On("RevokeSubject", mock.Anything, "subj-1").Return(nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "session-cred-1"})
	rec := httptest.NewRecorder()

	require.NoError(t, f.api.LogoutHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	ck := sessionCookieFrom(rec)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Negative(t, ck.MaxAge)
	f.prov.AssertExpectations(t)
}

func TestLogoutWithoutSessionStillRedirects(t *testing.T) {
	f := newAPIFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, f.api.LogoutHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	f.prov.AssertNotCalled(t, "RevokeSubject", mock.Anything, mock.Anything)
}

func TestMeUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, f.api.MeHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeWithValidSession(t *testing.T) {
	f := newAPIFixture(t)
	f.prov.On("VerifySessionCredential", mock.Anything, "session-cred-1").
		Return(testIdentity(), nil)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "app_session", Value: "session-cred-1"})
	rec := httptest.NewRecorder()

	require.NoError(t, f.api.MeHandler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "subj-1", body["subjectId"])
	assert.Equal(t, "a@example.com", body["email"])
	assert.Equal(t, "Alice", body["displayName"])
}
