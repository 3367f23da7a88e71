package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/models"
	"github.com/isdelr/ender-tasks-be/internal/services"
	"github.com/isdelr/ender-tasks-be/internal/storage/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

type client struct {
	t      *testing.T
	router *chi.Mux
}

func newClient(t *testing.T, bodyLimit int64) *client {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tokens := auth.NewTokenManager("access", "refresh", 15*time.Minute, time.Hour)
	router := NewRouter(Options{
		AllowedOrigins: []string{"http://localhost:3000"},
		BodyLimit:      bodyLimit,
		SecureCookies:  true,
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     time.Hour,
	}, services.NewUserService(store, tokens, bcrypt.MinCost), services.NewTodoService(store), store)

	return &client{t: t, router: router}
}

// do sends a request and decodes the envelope. token, if set, goes in the Authorization header.
func (c *client) do(method, path, token string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

type loginData struct {
	User         map[string]any `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (c *client) registerAndLogin() (email, password string, data loginData, cookies []*http.Cookie) {
	c.t.Helper()

	email = gofakeit.LetterN(10) + "@example.com"
	password = gofakeit.Password(true, true, true, false, false, 12)

	w, _ := c.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"fullName": gofakeit.Name(), "email": email, "password": password,
	})
	require.Equal(c.t, http.StatusCreated, w.Code)

	w, env := c.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(c.t, http.StatusOK, w.Code)
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	return email, password, data, w.Result().Cookies()
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRegisterResponse(t *testing.T) {
	c := newClient(t, 1024000)

	w, env := c.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"fullName": "Ada Lovelace", "email": "Ada@Example.com", "password": "analytical",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)

	body := string(env.Data)
	assert.Contains(t, body, `"email":"ada@example.com"`)
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "refreshToken")

	w, env = c.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"fullName": "Ada", "email": "ada@example.com", "password": "x",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, http.StatusConflict, env.StatusCode)
	assert.NotNil(t, env.Errors)
}

func TestLoginSetsCookies(t *testing.T) {
	c := newClient(t, 1024000)
	_, _, data, cookies := c.registerAndLogin()

	assert.NotEmpty(t, data.AccessToken)
	assert.NotEmpty(t, data.RefreshToken)
	assert.NotContains(t, data.User, "password")

	access := findCookie(cookies, auth.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, data.AccessToken, access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)

	refresh := findCookie(cookies, auth.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, data.RefreshToken, refresh.Value)
	assert.True(t, refresh.HttpOnly)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newClient(t, 1024000)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodPost, "/api/v1/users/logout"},
		{http.MethodGet, "/api/v1/todos/tasks"},
		{http.MethodDelete, "/api/v1/todos/tasks/abc"},
	} {
		w, env := c.do(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
		assert.False(t, env.Success)
	}

	w, env := c.do(http.MethodGet, "/api/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid access token.", env.Message)
}

func TestCookieAuthAndMe(t *testing.T) {
	c := newClient(t, 1024000)
	email, _, _, cookies := c.registerAndLogin()

	// The cookie wins over a bad header.
	w, env := c.do(http.MethodGet, "/api/v1/users/me", "garbage", nil, findCookie(cookies, auth.AccessTokenCookie))
	require.Equal(t, http.StatusOK, w.Code)

	var me map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, email, me["email"])
	assert.NotContains(t, me, "password")
	assert.NotContains(t, me, "refreshToken")
}

func TestRefreshTokenEndpoint(t *testing.T) {
	c := newClient(t, 1024000)
	_, _, data, cookies := c.registerAndLogin()

	w, env := c.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": data.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	var pair services.TokenPair
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotEqual(t, data.RefreshToken, pair.RefreshToken)
	assert.Equal(t, pair.RefreshToken, findCookie(w.Result().Cookies(), auth.RefreshTokenCookie).Value)

	// The login cookie still holds the superseded token and takes precedence over the body.
	w, env = c.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": pair.RefreshToken},
		findCookie(cookies, auth.RefreshTokenCookie))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Refresh token is expired or used", env.Message)

	// Cookie only, no body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: auth.RefreshTokenCookie, Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	w, env = c.do(http.MethodPost, "/api/v1/users/refresh-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized request", env.Message)
}

func TestLogoutClearsSession(t *testing.T) {
	c := newClient(t, 1024000)
	_, _, data, _ := c.registerAndLogin()

	w, env := c.do(http.MethodPost, "/api/v1/users/logout", data.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User logged Out", env.Message)

	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		cookie := findCookie(w.Result().Cookies(), name)
		require.NotNil(t, cookie, name)
		assert.Empty(t, cookie.Value)
		assert.Negative(t, cookie.MaxAge)
	}

	w, _ = c.do(http.MethodPost, "/api/v1/users/refresh-token", "", map[string]string{"refreshToken": data.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangePasswordAndUpdateMe(t *testing.T) {
	c := newClient(t, 1024000)
	email, password, data, _ := c.registerAndLogin()

	w, env := c.do(http.MethodPost, "/api/v1/users/change-password", data.AccessToken, map[string]string{
		"oldPassword": "wrong", "newPassword": "brand-new",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid old password", env.Message)

	w, _ = c.do(http.MethodPost, "/api/v1/users/change-password", data.AccessToken, map[string]string{
		"oldPassword": password, "newPassword": "brand-new",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = c.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{"email": email, "password": "brand-new"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = c.do(http.MethodPatch, "/api/v1/users/me", data.AccessToken, map[string]string{
		"fullName": "New Name", "email": "renamed@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "New Name", me.FullName)
	assert.Equal(t, "renamed@example.com", me.Email)
}

func TestTodoEndToEnd(t *testing.T) {
	c := newClient(t, 1024000)
	_, _, data, _ := c.registerAndLogin()
	token := data.AccessToken

	var created []models.Todo
	for _, title := range []string{"first", "second"} {
		w, env := c.do(http.MethodPost, "/api/v1/todos/tasks", token, map[string]string{
			"title": title, "description": title + " task",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var todo models.Todo
		require.NoError(t, json.Unmarshal(env.Data, &todo))
		assert.Equal(t, models.TodoPending, todo.Status)
		created = append(created, todo)
	}

	w, env := c.do(http.MethodGet, "/api/v1/todos/tasks", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, created[0].ID, list[0].ID)
	assert.Equal(t, created[1].ID, list[1].ID)

	w, _ = c.do(http.MethodPut, "/api/v1/todos/tasks/"+created[0].ID, token, map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = c.do(http.MethodPut, "/api/v1/todos/tasks/"+created[0].ID, token, map[string]string{"status": models.TodoInProgress})
	require.Equal(t, http.StatusOK, w.Code)

	w, env = c.do(http.MethodGet, "/api/v1/todos/tasks/"+created[0].ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.TodoInProgress, got.Status)

	for _, todo := range created {
		w, env = c.do(http.MethodDelete, "/api/v1/todos/tasks/"+todo.ID, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{}`, string(env.Data))
	}

	w, env = c.do(http.MethodGet, "/api/v1/todos/tasks/"+created[0].ID, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = c.do(http.MethodGet, "/api/v1/todos/tasks", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No todos found", env.Message)
}

func TestTodoOwnershipOverHTTP(t *testing.T) {
	c := newClient(t, 1024000)
	_, _, alice, _ := c.registerAndLogin()
	_, _, bob, _ := c.registerAndLogin()

	_, env := c.do(http.MethodPost, "/api/v1/todos/tasks", alice.AccessToken, map[string]string{
		"title": "mine", "description": "alice's",
	})
	var todo models.Todo
	require.NoError(t, json.Unmarshal(env.Data, &todo))

	path := "/api/v1/todos/tasks/" + todo.ID
	for _, req := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, map[string]string{"status": models.TodoCompleted}},
		{http.MethodDelete, nil},
	} {
		w, _ := c.do(req.method, path, bob.AccessToken, req.body)
		assert.Equal(t, http.StatusNotFound, w.Code, req.method)
	}

	w, _ := c.do(http.MethodGet, path, alice.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	c := newClient(t, 1024000)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/api/v1/users/unknown"},
		{http.MethodPatch, "/api/v1/todos/tasks"},
	} {
		w, env := c.do(req.method, req.path, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, req.path)
		assert.False(t, env.Success)
		assert.Equal(t, "Route not found", env.Message)
	}
}

func TestMalformedAndOversizedBodies(t *testing.T) {
	c := newClient(t, 64)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := c.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"fullName": strings.Repeat("a", 100), "email": "a@example.com", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Request body too large", env.Message)
}

func TestHealthz(t *testing.T) {
	c := newClient(t, 1024000)

	w, env := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestCORSPreflight(t *testing.T) {
	c := newClient(t, 1024000)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRefreshCookieIgnoresBody(t *testing.T) {
	c := newClient(t, 256)
	_, _, data, cookies := c.registerAndLogin()

	for name, body := range map[string]string{
		"malformed": "{not json",
		"oversized": `{"refreshToken":"` + strings.Repeat("x", 400) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(findCookie(cookies, auth.RefreshTokenCookie))
			w := httptest.NewRecorder()
			c.router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			cookies = w.Result().Cookies()
			assert.NotEqual(t, data.RefreshToken, findCookie(cookies, auth.RefreshTokenCookie).Value)
		})
	}
}

func TestFormEncodedBodies(t *testing.T) {
	c := newClient(t, 1024000)

	post := func(path string, form url.Values) (*httptest.ResponseRecorder, envelope) {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		w := httptest.NewRecorder()
		c.router.ServeHTTP(w, req)

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
		return w, env
	}

	email := gofakeit.LetterN(10) + "@example.com"
	w, env := post("/api/v1/users/register", url.Values{
		"fullName": {"Form User"}, "email": {email}, "password": {"secret-pw"},
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Message)

	w, env = post("/api/v1/users/login", url.Values{"email": {email}, "password": {"secret-pw"}})
	require.Equal(t, http.StatusOK, w.Code, env.Message)

	var data loginData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	w, _ = post("/api/v1/users/refresh-token", url.Values{"refreshToken": {data.RefreshToken}})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = post("/api/v1/users/login", url.Values{"email": {email}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid user credentials", env.Message)
}
