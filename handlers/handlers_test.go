package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/auth"
	"repdayAPI/internal/logger"
	"repdayAPI/internal/notification"
	"repdayAPI/internal/store/memory"
	"repdayAPI/internal/types/challenge"
	"repdayAPI/internal/user"
	"repdayAPI/middleware"
	"repdayAPI/services"
)

const (
	botToken      = "123456:TEST"
	webhookSecret = "hook-secret"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(notification.NudgeMessage) {}

type testServer struct {
	handler http.Handler
	store   *memory.Store
	clock   *testClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	lg := logger.Discard()
	clock := &testClock{t: time.Date(2026, 7, 5, 12, 0, 0, 0, time.UTC)}
	db := memory.New()
	access := auth.NewSuperadminList(nil)
	issuer := auth.NewTokenIssuer("secret", 24*time.Hour, clock.Now)

	challenges := services.NewChallengeService(db, access, nopDispatcher{},
		services.WithClock(clock.Now),
		services.WithBotUsername("repday_bot"),
		services.WithLogger(lg),
	)
	users := services.NewUserService(db, access, clock.Now)
	verifier := auth.SignedInitDataVerifier{BotToken: botToken, MaxAge: auth.InitDataMaxAge, Now: clock.Now}
	authService := services.NewAuthService(db, verifier, issuer, users, challenges, false, lg)

	handler := NewRouter(RouterConfig{
		Challenges:    challenges,
		Users:         users,
		Auth:          authService,
		Authenticator: middleware.NewAuthenticator(auth.NewTokenStrategy(issuer), db, lg),
		Ping:          db.Ping,
		Metrics:       http.NotFoundHandler(),
		MetricsUser:   "prom",
		MetricsPass:   "pass",
		WebhookSecret: webhookSecret,
		Logger:        lg,
	})
	return &testServer{handler: handler, store: db, clock: clock}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, tgID int64, name string) user.AuthResponse {
	t.Helper()
	v := url.Values{}
	v.Set("user", `{"id":`+strconv.FormatInt(tgID, 10)+`,"first_name":"`+name+`"}`)
	v.Set("auth_date", strconv.FormatInt(s.clock.Now().Unix(), 10))

	rec := s.do(t, http.MethodPost, "/api/v1/auth/telegram", "", user.TelegramAuthRequest{InitData: auth.SignInitData(v, botToken)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp user.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorResponse](t, rec).Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadSignature(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/v1/auth/telegram", "", user.TelegramAuthRequest{InitData: "user=%7B%22id%22%3A1%7D&hash=00"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_init_data", errorCode(t, rec))
}

func TestMeRoundTrip(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, 10, "Anna")

	rec := s.do(t, http.MethodGet, "/api/v1/me", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Anna", decode[user.MeResponse](t, rec).DisplayName)

	name := "Anya"
	rec = s.do(t, http.MethodPatch, "/api/v1/me", session.Token, user.UpdateProfileRequest{DisplayName: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Anya", decode[user.MeResponse](t, rec).DisplayName)

	rec = s.do(t, http.MethodPost, "/api/v1/me/devices", session.Token, user.RegisterDeviceRequest{Token: "t", Platform: user.PlatformIOS})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestChallengeFlow(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, 10, "Owner")
	member := s.login(t, 20, "Member")
	goal := 10

	rec := s.do(t, http.MethodPost, "/api/v1/challenges", owner.Token, challenge.CreateChallengeRequest{
		Title: "Pushups", GoalType: challenge.GoalQuantitative, DailyGoal: &goal, DurationDays: 30, StartDate: "2026-07-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[challenge.ChallengeDetail](t, rec)
	require.NotNil(t, created.InviteCode)
	base := "/api/v1/challenges/" + created.ID.String()

	rec = s.do(t, http.MethodGet, base, member.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_participant", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/challenges/invite/"+*created.InviteCode, member.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[challenge.ChallengeShort](t, rec).ID)

	rec = s.do(t, http.MethodPost, "/api/v1/challenges/invite/"+*created.InviteCode+"/join", member.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[challenge.ChallengeDetail](t, rec).Participants, 2)

	four, eight := 4, 8
	rec = s.do(t, http.MethodPost, base+"/progress", member.Token, challenge.ProgressUpdateRequest{Delta: &four})
	require.Equal(t, http.StatusOK, rec.Code)
	s.clock.Advance(2 * time.Hour)
	rec = s.do(t, http.MethodPost, base+"/progress", member.Token, challenge.ProgressUpdateRequest{Delta: &eight})
	require.Equal(t, http.StatusOK, rec.Code)
	prog := decode[challenge.ProgressResponse](t, rec)
	assert.Equal(t, 12, prog.Value)
	assert.True(t, prog.Completed)
	assert.InDelta(t, 100.0, prog.Percent, 0.001)

	rec = s.do(t, http.MethodGet, base+"/stats", member.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[challenge.ChallengeStats](t, rec)
	assert.Len(t, stats.Points, 5)
	assert.Equal(t, member.User.ID, stats.LeaderboardByValue[0].UserID)

	rec = s.do(t, http.MethodPost, base+"/messages", member.Token, challenge.MessageCreateRequest{Text: "done!"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodGet, base+"/messages", owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]challenge.MessageView](t, rec), 1)

	rec = s.do(t, http.MethodGet, base+"/invite-qr", owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[challenge.InviteQRResponse](t, rec).QRCodeBase64)

	rec = s.do(t, http.MethodDelete, base, member.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_owner", errorCode(t, rec))

	rec = s.do(t, http.MethodDelete, base+"/participants/"+member.User.ID.String(), owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, base, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, base, owner.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "challenge_not_found", errorCode(t, rec))
}

func TestNudgeRateLimitSetsRetryAfter(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, 10, "Owner")
	member := s.login(t, 20, "Member")

	rec := s.do(t, http.MethodPost, "/api/v1/challenges", owner.Token, challenge.CreateChallengeRequest{
		Title: "Run", GoalType: challenge.GoalCheckin, DurationDays: 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[challenge.ChallengeDetail](t, rec)
	base := "/api/v1/challenges/" + created.ID.String()
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, base+"/join", member.Token, nil).Code)

	nudgeURL := base + "/nudge?to_user_id=" + member.User.ID.String()
	rec = s.do(t, http.MethodPost, nudgeURL, owner.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[challenge.NudgeResponse](t, rec).OK)

	s.clock.Advance(30 * time.Minute)
	rec = s.do(t, http.MethodPost, nudgeURL, owner.Token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1800", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, base+"/nudge?to_user_id="+owner.User.ID.String(), owner.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "self_nudge", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, base+"/nudge?to_user_id=nobody", owner.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidPathID(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, 10, "Owner")

	rec := s.do(t, http.MethodGet, "/api/v1/challenges/not-a-uuid", owner.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", errorCode(t, rec))
}

func TestTelegramWebhook(t *testing.T) {
	s := newTestServer(t)
	session := s.login(t, 30, "Bot Fan")

	update := map[string]interface{}{
		"update_id": 1,
		"message": map[string]interface{}{
			"from": map[string]interface{}{"id": 30, "first_name": "Bot Fan"},
			"chat": map[string]interface{}{"id": 30, "type": "private"},
			"text": "/start",
		},
	}

	rec := s.do(t, http.MethodPost, "/telegram/webhook", "", update)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(update))
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", &buf)
	req.Header.Set(telegramSecretHeader, webhookSecret)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := s.store.GetUser(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.True(t, u.BotChatActive)
}

func TestMetricsRequireBasicAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "pass")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
