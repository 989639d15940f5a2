package services

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repdayAPI/internal/apperr"
	"repdayAPI/internal/auth"
	"repdayAPI/internal/logger"
	"repdayAPI/internal/user"
)

func TestUpdateMe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "  Captain  "
	me, err := f.users.UpdateMe(ctx, f.owner, user.UpdateProfileRequest{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Captain", me.DisplayName)
	assert.False(t, me.IsSuperadmin)

	long := strings.Repeat("я", 129)
	_, err = f.users.UpdateMe(ctx, f.owner, user.UpdateProfileRequest{DisplayName: &long})
	requireKind(t, err, apperr.KindValidation, "invalid_display_name")

	assert.True(t, f.users.GetMe(f.admin).IsSuperadmin)
}

func TestRegisterDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := user.RegisterDeviceRequest{Token: "fcm-token", Platform: user.PlatformAndroid}
	require.NoError(t, f.users.RegisterDevice(ctx, f.owner, req))
	require.NoError(t, f.users.RegisterDevice(ctx, f.owner, req))

	toks, err := f.store.ListDeviceTokens(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.Len(t, toks, 1)

	err = f.users.RegisterDevice(ctx, f.owner, user.RegisterDeviceRequest{Token: "x", Platform: "symbian"})
	requireKind(t, err, apperr.KindValidation, "invalid_platform")
}

func TestMarkBotChatActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.MarkBotChatActive(ctx, user.TelegramIdentity{TelegramID: 2}, true))
	u, err := f.users.GetUser(ctx, f.member.ID)
	require.NoError(t, err)
	assert.True(t, u.BotChatActive)

	d := f.joined(t)
	_, err = f.challenges.SendNudge(ctx, f.owner, d.ID, f.member.ID)
	require.NoError(t, err)
	sent := f.dispatcher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(2), sent[0].ToTelegramID)

	require.NoError(t, f.users.MarkBotChatActive(ctx, user.TelegramIdentity{TelegramID: 2}, false))
	u, err = f.users.GetUser(ctx, f.member.ID)
	require.NoError(t, err)
	assert.False(t, u.BotChatActive)
}

const testBotToken = "123456:TEST"

func signedLaunch(authDate time.Time, startParam string) string {
	v := url.Values{}
	v.Set("user", `{"id":555,"first_name":"Ivan","username":"ivan"}`)
	v.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	if startParam != "" {
		v.Set("start_param", startParam)
	}
	return auth.SignInitData(v, testBotToken)
}

func newAuthService(f *fixture, verifier auth.InitDataVerifier, dev bool) *AuthService {
	issuer := auth.NewTokenIssuer("secret", 24*time.Hour, f.clock.Now)
	s := NewAuthService(f.store, verifier, issuer, f.users, f.challenges, dev, logger.Discard())
	s.now = f.clock.Now
	return s
}

func TestLoginTelegram(t *testing.T) {
	f := newFixture(t)
	d := f.createChallenge(t)
	verifier := auth.SignedInitDataVerifier{BotToken: testBotToken, MaxAge: auth.InitDataMaxAge, Now: f.clock.Now}
	s := newAuthService(f, verifier, false)
	ctx := context.Background()

	resp, err := s.LoginTelegram(ctx, user.TelegramAuthRequest{InitData: signedLaunch(f.clock.Now(), *d.InviteCode)})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, int64(555), resp.User.TelegramID)
	assert.Equal(t, "Ivan", resp.User.DisplayName)
	require.NotNil(t, resp.InviteChallenge)
	assert.Equal(t, d.ID, resp.InviteChallenge.ID)

	again, err := s.LoginTelegram(ctx, user.TelegramAuthRequest{InitData: signedLaunch(f.clock.Now(), "unknown")})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, again.User.ID)
	assert.Nil(t, again.InviteChallenge)

	_, err = s.LoginTelegram(ctx, user.TelegramAuthRequest{InitData: "user=%7B%7D&hash=deadbeef"})
	requireKind(t, err, apperr.KindUnauthorized, "invalid_init_data")
}

func TestLoginTelegramDevFallback(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f, auth.UnverifiedInitDataParser{}, true)

	resp, err := s.LoginTelegram(context.Background(), user.TelegramAuthRequest{InitData: ""})
	require.NoError(t, err)
	assert.Equal(t, f.owner.ID, resp.User.ID)
}
