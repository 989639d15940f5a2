package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"repdayAPI/internal/user"
)

// InitDataMaxAge bounds how old a signed launch payload may be.
const InitDataMaxAge = 24 * time.Hour

var (
	ErrInitDataMalformed = errors.New("malformed init data")
	ErrInitDataSignature = errors.New("init data signature mismatch")
	ErrInitDataExpired   = errors.New("init data expired")
)

type TelegramUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

func (u TelegramUser) Identity() user.TelegramIdentity {
	id := user.TelegramIdentity{TelegramID: u.ID, FirstName: u.FirstName, LastName: u.LastName}
	if u.Username != "" {
		username := u.Username
		id.Username = &username
	}
	return id
}

// InitData is the launch payload a Telegram mini app passes to the backend.
type InitData struct {
	User       *TelegramUser
	StartParam string
	AuthDate   time.Time
}

// InitDataVerifier turns a raw launch payload into trusted InitData.
type InitDataVerifier interface {
	Verify(raw string) (*InitData, error)
}

// SignedInitDataVerifier checks the bot signature and freshness.
type SignedInitDataVerifier struct {
	BotToken string
	MaxAge   time.Duration
	Now      func() time.Time
}

func (v SignedInitDataVerifier) Verify(raw string) (*InitData, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	maxAge := v.MaxAge
	if maxAge == 0 {
		maxAge = InitDataMaxAge
	}
	return ValidateInitData(raw, v.BotToken, now(), maxAge)
}

// UnverifiedInitDataParser trusts the payload as sent. Local development only.
type UnverifiedInitDataParser struct{}

func (UnverifiedInitDataParser) Verify(raw string) (*InitData, error) {
	return ParseInitData(raw)
}

// ValidateInitData verifies the WebApp signature: the secret key is
// HMAC_SHA256(key="WebAppData", msg=botToken) and the hash is the hex
// HMAC_SHA256 of the data-check-string under that key.
func ValidateInitData(raw, botToken string, now time.Time, maxAge time.Duration) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitDataMalformed, err)
	}
	got := values.Get("hash")
	if got == "" {
		return nil, fmt.Errorf("%w: hash missing", ErrInitDataMalformed)
	}

	want := signature(values, botToken)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return nil, ErrInitDataSignature
	}

	data, err := decode(values)
	if err != nil {
		return nil, err
	}
	if data.AuthDate.IsZero() {
		return nil, fmt.Errorf("%w: auth_date missing", ErrInitDataMalformed)
	}
	if now.Sub(data.AuthDate) > maxAge {
		return nil, ErrInitDataExpired
	}
	return data, nil
}

// ParseInitData decodes the payload without checking its signature.
func ParseInitData(raw string) (*InitData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitDataMalformed, err)
	}
	return decode(values)
}

// SignInitData encodes values with a valid hash for botToken.
func SignInitData(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, v := range values {
		if k != "hash" {
			signed[k] = v
		}
	}
	signed.Set("hash", signature(signed, botToken))
	return signed.Encode()
}

func signature(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}

	secret := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	return hex.EncodeToString(hmacSHA256(secret, []byte(strings.Join(lines, "\n"))))
}

func hmacSHA256(key, msg []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(msg)
	return h.Sum(nil)
}

func decode(values url.Values) (*InitData, error) {
	data := &InitData{StartParam: values.Get("start_param")}

	if raw := values.Get("user"); raw != "" {
		var u TelegramUser
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrInitDataMalformed, err)
		}
		if u.ID == 0 {
			return nil, fmt.Errorf("%w: user id missing", ErrInitDataMalformed)
		}
		data.User = &u
	}

	if raw := values.Get("auth_date"); raw != "" {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: auth_date: %v", ErrInitDataMalformed, err)
		}
		data.AuthDate = time.Unix(ts, 0)
	}
	return data, nil
}
