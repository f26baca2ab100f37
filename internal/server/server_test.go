package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"warbler/internal/config"
	"warbler/internal/models"
	"warbler/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                  "5000",
		Env:                   "test",
		DBDriver:              "sqlite",
		SessionSecret:         "test-session-secret-that-is-long-enough",
		SessionTTLHours:       1,
		BcryptCost:            4,
		DefaultImageURL:       "/static/images/default-pic.png",
		DefaultHeaderImageURL: "/static/images/warbler-hero.jpg",
		AllowedOrigins:        "http://localhost:5000",
	}
}

type testEnv struct {
	server *Server
	app    *fiber.App
	db     *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	db := testutil.NewTestDB(t)
	_, rdb := testutil.NewTestRedis(t)
	s, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	return &testEnv{server: s, app: s.NewApp(), db: db}
}

// browser keeps cookies between requests like a user agent would.
type browser struct {
	t       *testing.T
	app     *fiber.App
	cookies map[string]string
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, app: e.app, cookies: map[string]string{}}
}

func (b *browser) do(method, path string, form url.Values) *http.Response {
	b.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	pairs := make([]string, 0, len(b.cookies))
	for k, v := range b.cookies {
		pairs = append(pairs, k+"="+v)
	}
	if len(pairs) > 0 {
		req.Header.Set("Cookie", strings.Join(pairs, "; "))
	}

	resp, err := b.app.Test(req, -1)
	require.NoError(b.t, err)
	b.t.Cleanup(func() { _ = resp.Body.Close() })

	for _, ck := range resp.Cookies() {
		if ck.Value == "" || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now())) {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck.Value
	}
	return resp
}

func (b *browser) get(path string) *http.Response {
	return b.do(http.MethodGet, path, nil)
}

// post submits form with a CSRF token fetched from GET /login.
func (b *browser) post(path string, form url.Values) *http.Response {
	b.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set(csrfFormField, b.csrfToken())
	return b.do(http.MethodPost, path, form)
}

func (b *browser) csrfToken() string {
	b.t.Helper()
	view := decodeView(b.t, b.get("/login"))
	token, _ := view["csrf_token"].(string)
	require.NotEmpty(b.t, token)
	return token
}

func (b *browser) signup(username string) uint {
	b.t.Helper()
	resp := b.post("/signup", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"password"},
	})
	require.Equal(b.t, fiber.StatusFound, resp.StatusCode)
	require.Equal(b.t, "/", resp.Header.Get("Location"))

	view := decodeView(b.t, b.get("/"))
	current, ok := view["current_user"].(map[string]any)
	require.True(b.t, ok, "signup must start a session")
	return uint(current["id"].(float64))
}

func decodeView(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var view map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func flashesOf(resp *http.Response) []Flash {
	for _, ck := range resp.Cookies() {
		if ck.Name == flashCookie && ck.Value != "" {
			return decodeFlashes(ck.Value)
		}
	}
	return nil
}

func assertDenied(t *testing.T, resp *http.Response) {
	t.Helper()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, []Flash{{Category: flashDanger, Message: "Access unauthorized."}}, flashesOf(resp))
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestHealthAndHeaders(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)

	live := b.get("/health/live")
	assert.Equal(t, fiber.StatusOK, live.StatusCode)
	assert.Equal(t, "no-store", live.Header.Get("Cache-Control"))

	ready := b.get("/health/ready")
	assert.Equal(t, fiber.StatusOK, ready.StatusCode)
	view := decodeView(t, ready)
	assert.Equal(t, "healthy", view["status"])

	home := b.get("/")
	assert.Equal(t, fiber.StatusOK, home.StatusCode)
	assert.Equal(t, "no-store", home.Header.Get("Cache-Control"))
	assert.Equal(t, true, decodeView(t, home)["anonymous"])
}

func TestAnonymousGatedRoutesRedirect(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)

	for _, path := range []string{"/users", "/users/1", "/users/profile", "/messages/new", "/messages/1"} {
		t.Run("GET "+path, func(t *testing.T) {
			assertDenied(t, b.get(path))
		})
	}

	// With a valid CSRF token the session gate still refuses the follow.
	u := testutil.CreateUser(t, e.db, "target")
	assertDenied(t, b.post(fmt.Sprintf("/users/follow/%d", u.ID), nil))
	assert.Zero(t, count(t, e.db, &models.Follow{}))
}

func TestCSRF_MissingOrWrongTokenChangesNothing(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")

	resp := b.do(http.MethodPost, "/messages/new", url.Values{"text": {"no token"}})
	assertDenied(t, resp)

	resp = b.do(http.MethodPost, "/messages/new", url.Values{"text": {"bad token"}, csrfFormField: {"forged"}})
	assertDenied(t, resp)

	assert.Zero(t, count(t, e.db, &models.Message{}))

	resp = b.post("/messages/new", url.Values{"text": {"with token"}})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, int64(1), count(t, e.db, &models.Message{}))
}

func TestCSRF_HeaderToken(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")
	token := b.csrfToken()

	req := httptest.NewRequest(http.MethodPost, "/messages/new", strings.NewReader(`{"text":"via header"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, token)
	pairs := make([]string, 0, len(b.cookies))
	for k, v := range b.cookies {
		pairs = append(pairs, k+"="+v)
	}
	req.Header.Set("Cookie", strings.Join(pairs, "; "))

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, int64(1), count(t, e.db, &models.Message{}))
}

func TestSignupPostAndFeed(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	me := b.signup("u1")

	resp := b.post("/messages/new", url.Values{"text": {"hello"}})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/users/%d", me), resp.Header.Get("Location"))

	view := decodeView(t, b.get("/"))
	assert.Equal(t, false, view["anonymous"])
	msgs := view["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].(map[string]any)["text"])

	profile := decodeView(t, b.get(fmt.Sprintf("/users/%d", me)))["profile"].(map[string]any)
	assert.Equal(t, float64(1), profile["message_count"])
}

func TestSignupDuplicate(t *testing.T) {
	e := newTestEnv(t)
	testutil.CreateUser(t, e.db, "taken")
	b := e.browser(t)

	resp := b.post("/signup", url.Values{
		"username": {"taken"},
		"email":    {"fresh@example.com"},
		"password": {"password"},
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Username or email already taken", decodeView(t, resp)["error"])
	assert.Equal(t, int64(1), count(t, e.db, &models.User{}))
	assert.NotContains(t, b.cookies, sessionCookie)
}

func TestSignupValidation(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)

	resp := b.post("/signup", url.Values{
		"username": {"u1"},
		"email":    {"not-an-email"},
		"password": {"password"},
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, count(t, e.db, &models.User{}))
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	signer := e.browser(t)
	signer.signup("u1")

	b := e.browser(t)
	resp := b.post("/login", url.Values{"username": {"u1"}, "password": {"wrong-password"}})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	view := decodeView(t, resp)
	assert.Contains(t, fmt.Sprint(view["flashes"]), "Invalid credentials.")
	assert.NotContains(t, b.cookies, sessionCookie)

	resp = b.post("/login", url.Values{"username": {"u1"}, "password": {"password"}})
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "Hello, u1!"}}, flashesOf(resp))
	assert.Contains(t, b.cookies, sessionCookie)

	// The flash is shown once by the next view.
	home := decodeView(t, b.get("/"))
	assert.Contains(t, fmt.Sprint(home["flashes"]), "Hello, u1!")
	again := decodeView(t, b.get("/"))
	assert.Empty(t, again["flashes"])
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")
	stolen := b.cookies[sessionCookie]

	resp := b.post("/logout", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.NotContains(t, b.cookies, sessionCookie)

	replay := e.browser(t)
	replay.cookies[sessionCookie] = stolen
	assertDenied(t, replay.get("/users"))
}

func TestFollowFlow(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	me := b.signup("u1")
	other := testutil.CreateUser(t, e.db, "u2")

	resp := b.post(fmt.Sprintf("/users/follow/%d", other.ID), nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/users/%d/following", me), resp.Header.Get("Location"))

	following := decodeView(t, b.get(fmt.Sprintf("/users/%d/following", me)))["following"].([]any)
	require.Len(t, following, 1)
	assert.Equal(t, "u2", following[0].(map[string]any)["username"])

	followers := decodeView(t, b.get(fmt.Sprintf("/users/%d/followers", other.ID)))["followers"].([]any)
	require.Len(t, followers, 1)

	resp = b.post(fmt.Sprintf("/users/stop-following/%d", other.ID), nil)
	assert.Equal(t, fmt.Sprintf("/users/%d/following", me), resp.Header.Get("Location"))
	assert.Zero(t, count(t, e.db, &models.Follow{}))

	resp = b.post("/users/follow/999", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLikeFlow(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	me := b.signup("u1")
	other := testutil.CreateUser(t, e.db, "u2")
	msg := testutil.CreateMessage(t, e.db, other.ID, "like me", time.Now())

	resp := b.post(fmt.Sprintf("/messages/%d/like", msg.ID), nil)
	assert.Equal(t, fmt.Sprintf("/users/%d/likes", me), resp.Header.Get("Location"))

	likes := decodeView(t, b.get(fmt.Sprintf("/users/%d/likes", me)))["likes"].([]any)
	require.Len(t, likes, 1)

	shown := decodeView(t, b.get(fmt.Sprintf("/messages/%d", msg.ID)))["message"].(map[string]any)
	assert.Equal(t, true, shown["liked"])

	resp = b.post(fmt.Sprintf("/messages/%d/unlike", msg.ID), nil)
	assert.Equal(t, fmt.Sprintf("/users/%d/likes", me), resp.Header.Get("Location"))
	assert.Zero(t, count(t, e.db, &models.Like{}))
}

func TestDeleteMessageOwnership(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	me := b.signup("u1")
	other := testutil.CreateUser(t, e.db, "u2")
	theirs := testutil.CreateMessage(t, e.db, other.ID, "not yours", time.Now())

	assertDenied(t, b.post(fmt.Sprintf("/messages/%d/delete", theirs.ID), nil))
	assert.Equal(t, int64(1), count(t, e.db, &models.Message{}))

	b.post("/messages/new", url.Values{"text": {"mine"}})
	var mine models.Message
	require.NoError(t, e.db.Where("user_id = ?", me).First(&mine).Error)

	resp := b.post(fmt.Sprintf("/messages/%d/delete", mine.ID), nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/users/%d", me), resp.Header.Get("Location"))
	assert.Equal(t, int64(1), count(t, e.db, &models.Message{}))
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	me := b.signup("u1")

	form := url.Values{
		"username": {"renamed"},
		"email":    {"renamed@example.com"},
		"bio":      {"hi"},
		"password": {"not-my-password"},
	}
	resp := b.post("/users/profile", form)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid username/password.", decodeView(t, resp)["error"])

	form.Set("password", "password")
	resp = b.post("/users/profile", form)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, fmt.Sprintf("/users/%d", me), resp.Header.Get("Location"))

	view := decodeView(t, b.get("/users/profile"))
	assert.Equal(t, "renamed", view["user"].(map[string]any)["username"])
	assert.Equal(t, "renamed", view["current_user"].(map[string]any)["username"])
}

func TestDeleteAccount(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")
	b.post("/messages/new", url.Values{"text": {"bye"}})

	resp := b.post("/users/delete", nil)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/signup", resp.Header.Get("Location"))
	assert.NotContains(t, b.cookies, sessionCookie)
	assert.Zero(t, count(t, e.db, &models.User{}))
	assert.Zero(t, count(t, e.db, &models.Message{}))
}

func TestSignupPageEndsSession(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")

	view := decodeView(t, b.get("/signup"))
	assert.Nil(t, view["current_user"])
	assert.NotContains(t, b.cookies, sessionCookie)
}

func TestNotFoundAndBadID(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("u1")

	resp := b.get("/users/999")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decodeView(t, resp)["code"])

	assert.Equal(t, fiber.StatusNotFound, b.get("/messages/999").StatusCode)
	assert.Equal(t, fiber.StatusBadRequest, b.get("/users/abc/likes").StatusCode)
}

func TestListUsersSearch(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)
	b.signup("alice")
	testutil.CreateUser(t, e.db, "bob")

	all := decodeView(t, b.get("/users"))["users"].([]any)
	assert.Len(t, all, 2)

	found := decodeView(t, b.get("/users?q=bo"))["users"].([]any)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].(map[string]any)["username"])
}

func TestDeletedAccountEndsOtherSessions(t *testing.T) {
	e := newTestEnv(t)
	first := e.browser(t)
	first.signup("u1")
	target := e.browser(t).signup("u2")

	second := e.browser(t)
	resp := second.post("/login", url.Values{"username": {"u1"}, "password": {"password"}})
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	stale := second.cookies[sessionCookie]
	require.NotEmpty(t, stale)

	require.Equal(t, fiber.StatusFound, first.post("/users/delete", nil).StatusCode)

	// Each request replays the session cookie issued before the account was deleted.
	replay := func(method, path string, form url.Values) *http.Response {
		if form != nil {
			form.Set(csrfFormField, second.csrfToken())
		}
		second.cookies[sessionCookie] = stale
		return second.do(method, path, form)
	}

	view := decodeView(t, replay(http.MethodGet, "/", nil))
	assert.Nil(t, view["current_user"])
	assert.Equal(t, true, view["anonymous"])
	assert.NotContains(t, second.cookies, sessionCookie)

	assertDenied(t, replay(http.MethodPost, "/messages/new", url.Values{"text": {"ghost"}}))
	assertDenied(t, replay(http.MethodPost, fmt.Sprintf("/users/follow/%d", target), url.Values{}))
	assertDenied(t, replay(http.MethodGet, "/users/profile", nil))

	assert.Zero(t, count(t, e.db, &models.Message{}))
	assert.Zero(t, count(t, e.db, &models.Follow{}))
}

func TestCSRFTokenRotatesWithSession(t *testing.T) {
	e := newTestEnv(t)
	b := e.browser(t)

	before := b.csrfToken()
	beforeCookie := b.cookies["csrf_"]
	require.NotEmpty(t, beforeCookie)

	b.signup("u1")
	after := b.csrfToken()
	assert.NotEqual(t, before, after)

	// The token issued to the anonymous visitor no longer passes once logged in.
	b.cookies["csrf_"] = beforeCookie
	resp := b.do(http.MethodPost, "/messages/new", url.Values{"text": {"hi"}, csrfFormField: {before}})
	assertDenied(t, resp)
	assert.Zero(t, count(t, e.db, &models.Message{}))

	b.post("/logout", nil)
	assert.NotEqual(t, after, b.csrfToken())
}
