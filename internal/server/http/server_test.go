package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeUsers struct {
	loginRes *services.LoginResult
	loginErr error

	registered *models.User
	regErr     error

	// token -> user; tokens not in the map resolve to resolveErr.
	tokens     map[string]*models.User
	resolveErr error

	setUser *models.User
	setErr  error

	gotEmail    string
	gotPassword string
	gotActive   *bool
	sawConn     bool
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	f.gotEmail, f.gotPassword = email, password
	f.sawConn = dbx.ConnFromContext(ctx, nil) != nil
	return f.loginRes, f.loginErr
}

func (f *fakeUsers) Register(ctx context.Context, email string, name *string, password string) (*models.User, error) {
	f.gotEmail, f.gotPassword = email, password
	if f.regErr != nil {
		return nil, f.regErr
	}
	return f.registered, nil
}

func (f *fakeUsers) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	if u, ok := f.tokens[token]; ok {
		return u, nil
	}
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	return nil, common.ErrTokenInvalid
}

func (f *fakeUsers) RequireSuperuser(user *models.User) error {
	if user == nil || !user.IsSuperuser {
		return common.ErrInsufficientPrivilege
	}
	return nil
}

func (f *fakeUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.User, error) {
	f.gotActive = &active
	if f.setErr != nil {
		return nil, f.setErr
	}
	return f.setUser, nil
}

// ---- helpers ----

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.GinMode = gin.TestMode
	return cfg
}

func newTestRouter(us UserService) *gin.Engine {
	return NewHTTPServer(testConfig(), logging.Nop{}, us, nil).Router()
}

func strPtr(s string) *string { return &s }

func alice() *models.User {
	return &models.User{
		ID:           uuid.MustParse("6f1c2a8e-3b5d-4c7e-9f10-2a3b4c5d6e7f"),
		Email:        "alice@example.com",
		Name:         strPtr("Alice"),
		PasswordHash: "$2a$10$secret-hash",
		IsActive:     true,
	}
}

func do(t *testing.T, h http.Handler, method, target, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func form(username, password string) string {
	v := url.Values{}
	if username != "" {
		v.Set("username", username)
	}
	if password != "" {
		v.Set("password", password)
	}
	return v.Encode()
}

const formType = "application/x-www-form-urlencoded"
const jsonType = "application/json"

// ---- login ----

func TestLogin_Success(t *testing.T) {
	u := alice()
	fu := &fakeUsers{loginRes: &services.LoginResult{AccessToken: "tok", TokenType: "bearer", User: u}}
	r := newTestRouter(fu)

	rec := do(t, r, http.MethodPost, "/api/v1/login/", formType, form("alice@example.com", "password1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "tok", body["access_token"])
	assert.Equal(t, "bearer", body["token_type"])
	assert.Equal(t, u.ID.String(), body["user_id"])
	assert.Equal(t, "alice@example.com", body["user_email"])
	assert.Equal(t, "Alice", body["user_name"])
	assert.Equal(t, "alice@example.com", fu.gotEmail)
	assert.Equal(t, "password1", fu.gotPassword)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"bad credentials", form("a@x.io", "nope"), common.ErrInvalidCredentials, http.StatusBadRequest, "Incorrect email or password"},
		{"inactive", form("a@x.io", "password1"), common.ErrAccountInactive, http.StatusBadRequest, "Inactive user"},
		{"store down", form("a@x.io", "password1"), errors.New("db gone"), http.StatusInternalServerError, "internal error"},
		{"missing password", form("a@x.io", ""), nil, http.StatusUnprocessableEntity, "password: field required"},
		{"missing username", form("", "password1"), nil, http.StatusUnprocessableEntity, "username: field required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeUsers{loginErr: tt.err})
			rec := do(t, r, http.MethodPost, "/api/v1/login/", formType, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec)["detail"])
		})
	}
}

// ---- create user ----

func TestCreateUser_Success(t *testing.T) {
	u := alice()
	fu := &fakeUsers{registered: u}
	r := newTestRouter(fu)

	rec := do(t, r, http.MethodPost, "/api/v1/create/user/", jsonType,
		`{"email":"alice@example.com","name":"Alice","password":"password1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, u.ID.String(), body["id"])
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Equal(t, "Alice", body["name"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "secret-hash")
	assert.NotContains(t, body, "is_superuser")
}

func TestCreateUser_Duplicate(t *testing.T) {
	r := newTestRouter(&fakeUsers{regErr: common.ErrDuplicateEmail})

	rec := do(t, r, http.MethodPost, "/api/v1/create/user/", jsonType,
		`{"email":"alice@example.com","password":"password1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "The user with this email already exists in the system.", decode(t, rec)["detail"])
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"email":`},
		{"missing email", `{"password":"password1"}`},
		{"bad email", `{"email":"not-an-email","password":"password1"}`},
		{"missing password", `{"email":"a@x.io"}`},
		{"password too short", `{"email":"a@x.io","password":"short"}`},
		{"password too long", `{"email":"a@x.io","password":"` + strings.Repeat("p", 41) + `"}`},
		{"password over bcrypt limit", `{"email":"a@x.io","password":"` + strings.Repeat("日", 40) + `"}`},
		{"email too long", `{"email":"` + strings.Repeat("a", 251) + `@x.io","password":"password1"}`},
		{"name too long", `{"email":"a@x.io","name":"` + strings.Repeat("n", 256) + `","password":"password1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fu := &fakeUsers{registered: alice()}
			r := newTestRouter(fu)
			rec := do(t, r, http.MethodPost, "/api/v1/create/user/", jsonType, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["detail"])
			assert.Empty(t, fu.gotEmail, "service must not be reached")
		})
	}
}

func TestCreateUser_MultibyteWithinLimits(t *testing.T) {
	fu := &fakeUsers{registered: alice()}
	r := newTestRouter(fu)

	pw := strings.Repeat("日", 24) // 72 bytes
	rec := do(t, r, http.MethodPost, "/api/v1/create/user/", jsonType,
		`{"email":"a@x.io","password":"`+pw+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, pw, fu.gotPassword)
}

// ---- token gate ----

func TestRequireUser(t *testing.T) {
	u := alice()
	tests := []struct {
		name       string
		header     string
		resolveErr error
		wantCode   int
		wantMsg    string
	}{
		{"no header", "", nil, http.StatusUnauthorized, "Not authenticated"},
		{"wrong scheme", "Basic YWxpY2U6cGFzcw==", nil, http.StatusUnauthorized, "Not authenticated"},
		{"empty token", "Bearer ", nil, http.StatusUnauthorized, "Not authenticated"},
		{"invalid token", "Bearer garbage", common.ErrTokenInvalid, http.StatusForbidden, "Could not validate credentials"},
		{"user gone", "Bearer orphan", common.ErrAccountNotFound, http.StatusNotFound, "User not found"},
		{"inactive", "Bearer sleepy", common.ErrAccountInactive, http.StatusBadRequest, "Inactive user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fu := &fakeUsers{tokens: map[string]*models.User{"good": u}, resolveErr: tt.resolveErr}
			r := newTestRouter(fu)

			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			rec := do(t, r, http.MethodGet, "/api/v1/logout", "", "", headers...)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantMsg, decode(t, rec)["detail"])
			if tt.wantCode == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestLogout_Success(t *testing.T) {
	r := newTestRouter(&fakeUsers{tokens: map[string]*models.User{"good": alice()}})

	rec := do(t, r, http.MethodGet, "/api/v1/logout", "", "", "Authorization", "bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Successfully logged out.", decode(t, rec)["msg"])
}

func TestMe(t *testing.T) {
	u := alice()
	r := newTestRouter(&fakeUsers{tokens: map[string]*models.User{"good": u}})

	rec := do(t, r, http.MethodGet, "/api/v1/users/me", "", "", "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, u.ID.String(), body["id"])
	assert.Equal(t, u.Email, body["email"])
	assert.NotContains(t, rec.Body.String(), "hash")
}

// ---- activation ----

func TestSetActive(t *testing.T) {
	admin := alice()
	admin.IsSuperuser = true
	plain := alice()
	plain.ID = uuid.New()

	target := alice()
	target.ID = uuid.New()
	target.IsActive = false

	tokens := map[string]*models.User{"admin": admin, "plain": plain}
	path := "/api/v1/users/" + target.ID.String() + "/active"

	tests := []struct {
		name     string
		token    string
		path     string
		body     string
		setErr   error
		wantCode int
	}{
		{"not superuser", "plain", path, `{"is_active":false}`, nil, http.StatusForbidden},
		{"bad id", "admin", "/api/v1/users/not-a-uuid/active", `{"is_active":false}`, nil, http.StatusUnprocessableEntity},
		{"missing flag", "admin", path, `{}`, nil, http.StatusUnprocessableEntity},
		{"unknown user", "admin", path, `{"is_active":false}`, common.ErrAccountNotFound, http.StatusNotFound},
		{"success", "admin", path, `{"is_active":false}`, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fu := &fakeUsers{tokens: tokens, setUser: target, setErr: tt.setErr}
			r := newTestRouter(fu)

			rec := do(t, r, http.MethodPatch, tt.path, jsonType, tt.body, "Authorization", "Bearer "+tt.token)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			switch tt.wantCode {
			case http.StatusForbidden:
				assert.Equal(t, "The user doesn't have enough privileges", decode(t, rec)["detail"])
				assert.Nil(t, fu.gotActive)
			case http.StatusOK:
				require.NotNil(t, fu.gotActive)
				assert.False(t, *fu.gotActive)
				assert.Equal(t, target.ID.String(), decode(t, rec)["id"])
			}
		})
	}
}

// ---- health & db session ----

func TestHealth(t *testing.T) {
	t.Run("no database", func(t *testing.T) {
		r := newTestRouter(&fakeUsers{})
		rec := do(t, r, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("ping ok", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		r := NewHTTPServer(testConfig(), logging.Nop{}, &fakeUsers{}, db).Router()
		rec := do(t, r, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", decode(t, rec)["status"])
	})

	t.Run("ping fails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("down"))

		r := NewHTTPServer(testConfig(), logging.Nop{}, &fakeUsers{}, db).Router()
		rec := do(t, r, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestDBSession_ScopesConnectionToRequest(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	fu := &fakeUsers{loginErr: common.ErrInvalidCredentials}
	r := NewHTTPServer(testConfig(), logging.Nop{}, fu, db).Router()

	for i := 0; i < 3; i++ {
		rec := do(t, r, http.MethodPost, "/api/v1/login/", formType, form("a@x.io", "password1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.True(t, fu.sawConn, "handler must see a request-scoped connection")
		assert.Equal(t, 0, db.Stats().InUse, "connection must be released after the request")
	}
}

func TestCustomPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.APIPrefix = "/v2"
	r := NewHTTPServer(cfg, logging.Nop{}, &fakeUsers{tokens: map[string]*models.User{"good": alice()}}, nil).Router()

	rec := do(t, r, http.MethodGet, "/v2/logout", "", "", "Authorization", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/logout", "", "", "Authorization", "Bearer good")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS_Preflight(t *testing.T) {
	r := newTestRouter(&fakeUsers{})

	rec := do(t, r, http.MethodOptions, "/api/v1/login/", "", "",
		"Origin", "http://localhost:3000",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Authorization")
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
